package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finverse-chatbot/pkg/llm"
	"finverse-chatbot/pkg/store"
)

type modelVote struct {
	QueryType string `json:"query_type"`
	Reasoning string `json:"reasoning"`
}

// classifyWithModel asks the model whether product documents are needed
// beyond the catalog. Runs at temperature 0 under its own timeout.
func (c *Classifier) classifyWithModel(ctx context.Context, message string, history []store.Turn) (QueryType, error) {
	if c.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.LLMTimeout)
		defer cancel()
	}

	response, err := c.llmProvider.Generate(ctx, c.buildPrompt(message, history), llm.WithTemperature(0.0))
	if err != nil {
		return "", err
	}

	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return "", fmt.Errorf("no JSON found in response")
	}
	var vote modelVote
	if err := json.Unmarshal([]byte(jsonContent), &vote); err != nil {
		return "", fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	qt := QueryType(strings.ToLower(strings.TrimSpace(vote.QueryType)))
	if !qt.Valid() {
		return "", fmt.Errorf("unknown query type %q", vote.QueryType)
	}
	c.logger.Debug("INTENT", "Model vote", map[string]interface{}{"vote": qt, "reasoning": vote.Reasoning})
	return qt, nil
}

func (c *Classifier) buildPrompt(message string, history []store.Turn) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You route questions for a financial products assistant.\n")
	prompt.WriteString("You do NOT answer questions. You only classify them.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<catalog_schema>\n")
	prompt.WriteString(c.schema.Describe())
	prompt.WriteString("</catalog_schema>\n\n")

	if len(history) > 0 {
		prompt.WriteString("<conversation>\n")
		for _, t := range history {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", t.Role, t.Text))
		}
		prompt.WriteString("</conversation>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<query_types>\n")
	prompt.WriteString("sql: answerable from catalog fields alone (rates, fees, amounts, terms, lists, comparisons)\n")
	prompt.WriteString("vector: needs product descriptions or general financial knowledge (suitability, explanations)\n")
	prompt.WriteString("hybrid: needs both catalog values and descriptive knowledge\n")
	prompt.WriteString("unsupported: not about financial products\n")
	prompt.WriteString("</query_types>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"query_type\": \"sql|vector|hybrid|unsupported\", \"reasoning\": \"Brief explanation\"}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
