package response

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finverse-chatbot/pkg/rag/structured"
)

// leading columns of the row table; the rest follow alphabetically
var columnOrder = []string{"name", "institution", "productType", "category"}

// identifiers are for the client, not the model
var hiddenColumns = map[string]bool{
	"productId":     true,
	"institutionId": true,
}

func buildSystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are FinVerse Assistant, helping users compare financial products offered on the FinVerse marketplace.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<grounding_rules>\n")
	prompt.WriteString("1. Answer ONLY from the data inside <catalog_rows>, <related_products> and <reference_passages>.\n")
	prompt.WriteString("2. Never invent rates, fees, amounts, product names or institution names.\n")
	prompt.WriteString("3. If the supplied data does not answer the question, say so explicitly.\n")
	prompt.WriteString("4. Quote numbers exactly as they appear in the data.\n")
	prompt.WriteString("5. Mention the product and institution a fact comes from.\n")
	prompt.WriteString("6. Do not give personal financial advice beyond comparing the supplied products.\n")
	prompt.WriteString("</grounding_rules>\n\n")

	prompt.WriteString("<response_style>\n")
	prompt.WriteString("Be concise and friendly. Use a short markdown list or table when comparing several products.\n")
	prompt.WriteString("Do not add a sources section; sources are displayed separately.\n")
	prompt.WriteString("</response_style>")

	return prompt.String()
}

func buildUserPrompt(in Input) string {
	var prompt strings.Builder

	if len(in.Rows) > 0 {
		prompt.WriteString("<catalog_rows>\n")
		prompt.WriteString(formatRows(in.Rows))
		prompt.WriteString("</catalog_rows>\n\n")
	}

	// only mention these when the user asks about alternatives
	if len(in.Related) > 0 {
		prompt.WriteString("<related_products>\n")
		prompt.WriteString(formatRows(in.Related))
		prompt.WriteString("</related_products>\n\n")
	}

	if len(in.Passages) > 0 {
		prompt.WriteString("<reference_passages>\n")
		for i, p := range in.Passages {
			prompt.WriteString(fmt.Sprintf("[%d] [%s - %s]\n", i+1, p.SourceName, orDash(p.InstitutionName)))
			prompt.WriteString(strings.TrimSpace(p.Text))
			prompt.WriteString("\n\n")
		}
		prompt.WriteString("</reference_passages>\n\n")
	}

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(in.Message)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Answer the question using only the data above:")

	return prompt.String()
}

// formatRows renders rows as a compact pipe-delimited table
func formatRows(rows []structured.Row) string {
	columns := rowColumns(rows)

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = formatValue(row[col])
		}
		b.WriteString(strings.Join(values, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

func rowColumns(rows []structured.Row) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !hiddenColumns[k] {
				present[k] = true
			}
		}
	}

	columns := make([]string, 0, len(present))
	for _, col := range columnOrder {
		if present[col] {
			columns = append(columns, col)
			delete(present, col)
		}
	}
	rest := make([]string, 0, len(present))
	for col := range present {
		rest = append(rest, col)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		val = strings.ReplaceAll(val, "|", "/")
		val = strings.ReplaceAll(val, "\n", " ")
		if val == "" {
			return "-"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
