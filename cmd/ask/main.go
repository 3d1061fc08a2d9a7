package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"finverse-chatbot/internal/bootstrap"
	"finverse-chatbot/internal/config"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/database"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/response"
	"finverse-chatbot/pkg/rag/search"

	"github.com/fatih/color"
)

// ask runs one question through the engine and shows how it was answered
func main() {
	dryRun := flag.Bool("dry-run", false, "classify and retrieve only, skip answer generation")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-dry-run] <question>")
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, "silent", database.DefaultPoolConfig())
	if err != nil {
		color.Red("✗ connect database: %v", err)
		os.Exit(1)
	}

	engine, err := bootstrap.NewEngine(ctx, db, cfg, logger.NewNopLogger())
	if err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}

	start := time.Now()
	classification := engine.Classifier.Classify(ctx, question, nil)

	header := color.New(color.FgCyan, color.Bold)
	header.Println("Classification")
	fmt.Printf("  type:       %s\n", classification.Type)
	fmt.Printf("  vague cues: %v\n", classification.VagueCues)
	if classification.StructuredHint != nil {
		fmt.Printf("  filters:    %+v\n", classification.StructuredHint.Filters)
	}

	if classification.Type == intent.QueryTypeUnsupported {
		color.Yellow("\n%s", response.UnsupportedMessage)
		return
	}

	retrieval := engine.Executor.Execute(ctx, classification, classification.StructuredHint, question, search.Scope{})

	header.Println("\nRetrieval")
	fmt.Printf("  rows:     %d (truncated: %v)\n", len(retrieval.Rows), retrieval.Truncated)
	for _, p := range retrieval.Passages {
		fmt.Printf("  passage:  %.3f %s (%s)\n", p.Score, p.SourceName, p.InstitutionName)
	}
	if retrieval.StructuredErr != nil {
		color.Yellow("  structured: %v", retrieval.StructuredErr)
	}
	if retrieval.SemanticErr != nil {
		color.Yellow("  semantic:   %v", retrieval.SemanticErr)
	}

	if *dryRun {
		return
	}

	answer := engine.Generator.Generate(ctx, response.Input{
		Message:   question,
		QueryType: classification.Type,
		Rows:      retrieval.Rows,
		Passages:  retrieval.Passages,
	})

	header.Println("\nAnswer")
	if answer.Failed {
		color.Red("%s (%v)", answer.Text, answer.Err)
	} else {
		fmt.Println(answer.Text)
	}
	for _, s := range answer.Sources {
		color.Green("  • %s (%s)", s.Name, s.Institution)
	}
	fmt.Printf("\n%s\n", time.Since(start).Round(time.Millisecond))
}
