package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"finverse-chatbot/internal/bootstrap"
	"finverse-chatbot/internal/config"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/unitofwork"
	"finverse-chatbot/internal/service"
	"finverse-chatbot/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	productFlag := flag.String("product", "", "index a single product by id")
	institutionFlag := flag.String("institution", "", "index a single institution by id")
	flag.Parse()

	cfg := config.Load()
	sysLogger := logger.NewZapLogger(logger.Options{
		FilePath: cfg.App.LogFilePath,
		Level:    cfg.App.LogLevel,
		IsProd:   cfg.IsProduction(),
	})
	defer sysLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel, database.DefaultPoolConfig())
	if err != nil {
		fail("connect database", err)
	}
	if err := bootstrap.PrepareDatabase(db, sysLogger); err != nil {
		fail("prepare database", err)
	}

	embeddingProvider, err := bootstrap.NewEmbeddingProvider(ctx, cfg, sysLogger)
	if err != nil {
		fail("embedding provider", err)
	}

	indexer := service.NewIndexerService(
		unitofwork.NewRepositoryFactory(db, sysLogger),
		embeddingProvider,
		service.ChunkConfig{Size: cfg.Engine.ChunkSize, Overlap: cfg.Engine.ChunkOverlap},
		sysLogger,
	)

	color.Cyan("Indexing with %s", embeddingProvider.ModelVersion())
	start := time.Now()
	failed := false

	switch {
	case *productFlag != "":
		id := mustParse(*productFlag)
		n, err := indexer.IndexProduct(ctx, id)
		if err != nil {
			fail("index product", err)
		}
		color.Green("✓ product %s: %d chunks", id, n)

	case *institutionFlag != "":
		id := mustParse(*institutionFlag)
		n, err := indexer.IndexInstitution(ctx, id)
		if err != nil {
			fail("index institution", err)
		}
		color.Green("✓ institution %s: %d chunks", id, n)

	default:
		report, err := indexer.IndexAll(ctx)
		if err != nil {
			fail("index catalog", err)
		}
		color.Green("✓ %d institutions, %d products, %d chunks", report.Institutions, report.Products, report.Chunks)
		for _, name := range report.Failed {
			color.Red("✗ %s", name)
		}
		failed = len(report.Failed) > 0
	}

	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
	if failed {
		os.Exit(1)
	}
}

func mustParse(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		fail("parse id", err)
	}
	return id
}

func fail(step string, err error) {
	color.Red("✗ %s: %v", step, err)
	os.Exit(1)
}
