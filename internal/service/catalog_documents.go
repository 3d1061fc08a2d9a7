package service

import (
	"fmt"
	"strconv"
	"strings"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/pkg/rag/structured"
)

// productDocument renders a product as the text that is chunked and embedded.
// The header lines repeat in the first chunk so every product is findable by name.
func productDocument(p *entity.Product) string {
	var b strings.Builder

	b.WriteString("Product: " + p.Name + "\n")
	b.WriteString("Institution: " + orUnknown(p.InstitutionName) + "\n")
	if p.CategoryName != "" || p.ProductTypeName != "" {
		b.WriteString("Category: " + strings.TrimSpace(p.CategoryName+" "+p.ProductTypeName) + "\n")
	}
	if p.IsFeatured {
		b.WriteString("Featured product\n")
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}

	d := p.Details
	facts := []struct {
		label string
		value *float64
		unit  string
	}{
		{"Interest rate", d.InterestRate, "%"},
		{"Annual percentage rate", d.AnnualPercentageRate, "%"},
		{"Minimum balance", d.MinimumBalance, ""},
		{"Monthly fee", d.MonthlyFee, ""},
		{"Annual fee", d.AnnualFee, ""},
		{"Origination fee", d.OriginationFee, "%"},
		{"Minimum loan amount", d.LoanAmountMin, ""},
		{"Maximum loan amount", d.LoanAmountMax, ""},
		{"Minimum term", d.TermMin, " months"},
		{"Maximum term", d.TermMax, " months"},
	}

	wroteHeader := false
	for _, f := range facts {
		if f.value == nil {
			continue
		}
		if !wroteHeader {
			b.WriteString("\nKey facts:\n")
			wroteHeader = true
		}
		b.WriteString(fmt.Sprintf("- %s: %s%s\n", f.label, strconv.FormatFloat(*f.value, 'f', -1, 64), f.unit))
	}

	writeList(&b, "Features", d.Features)
	writeList(&b, "Requirements", d.Requirements)

	return strings.TrimSpace(b.String())
}

// institutionDocument summarises an institution and what it offers
func institutionDocument(i *entity.Institution, products []*entity.Product) string {
	var b strings.Builder

	b.WriteString("Institution: " + i.Name + "\n")
	if i.CountryCode != "" {
		b.WriteString("Country: " + i.CountryCode + "\n")
	}
	if i.LicenseNumber != "" {
		b.WriteString("License number: " + i.LicenseNumber + "\n")
	}

	if len(products) > 0 {
		b.WriteString(fmt.Sprintf("\n%s offers %d products on FinVerse:\n", i.Name, len(products)))
		for _, p := range products {
			category := strings.TrimSpace(p.CategoryName + " " + p.ProductTypeName)
			if category != "" {
				b.WriteString(fmt.Sprintf("- %s (%s)\n", p.Name, category))
			} else {
				b.WriteString("- " + p.Name + "\n")
			}
		}
	}

	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + title + ":\n")
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			b.WriteString("- " + item + "\n")
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// productRow renders a product with the same column names the structured
// retriever uses, so it can sit next to retrieved rows in a prompt
func productRow(p *entity.Product) structured.Row {
	row := structured.Row{
		"productId":   p.Id.String(),
		"name":        p.Name,
		"institution": p.InstitutionName,
	}
	if p.ProductTypeName != "" {
		row["productType"] = p.ProductTypeName
	}
	if p.CategoryName != "" {
		row["category"] = p.CategoryName
	}

	d := p.Details
	for name, value := range map[string]*float64{
		"interestRate":         d.InterestRate,
		"annualPercentageRate": d.AnnualPercentageRate,
		"minimumBalance":       d.MinimumBalance,
		"monthlyFee":           d.MonthlyFee,
		"annualFee":            d.AnnualFee,
		"originationFee":       d.OriginationFee,
		"loanAmountMin":        d.LoanAmountMin,
		"loanAmountMax":        d.LoanAmountMax,
		"termMin":              d.TermMin,
		"termMax":              d.TermMax,
	} {
		if value != nil {
			row[name] = *value
		}
	}
	return row
}
