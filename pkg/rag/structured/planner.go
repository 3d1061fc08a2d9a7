package structured

import (
	"regexp"
	"strconv"
	"strings"

	"finverse-chatbot/pkg/catalog"
)

// Signals are the catalog entities detected in (or inherited by) a message
type Signals struct {
	Fields       []catalog.FieldMatch
	Institutions []catalog.Institution
	Category     *catalog.Category
}

// Empty reports whether nothing structured was detected
func (s Signals) Empty() bool {
	return len(s.Fields) == 0 && len(s.Institutions) == 0 && s.Category == nil
}

// Planner turns detected signals into a structured query plan
type Planner struct {
	schema       *catalog.SchemaDescriptor
	defaultLimit int
}

func NewPlanner(schema *catalog.SchemaDescriptor, defaultLimit int) *Planner {
	if defaultLimit <= 0 {
		defaultLimit = DefaultResultCap
	}
	return &Planner{schema: schema, defaultLimit: defaultLimit}
}

var (
	ascendingCues  = []string{"lowest", "cheapest", "smallest", "shortest"}
	descendingCues = []string{"highest", "largest", "biggest", "most expensive", "longest", "greatest"}

	numberPattern = `(\d[\d,]*(?:\.\d+)?)\s*(thousand|million|percent|%|k\b|m\b)?`
	lessPattern   = regexp.MustCompile(`\b(under|below|less than|lower than|cheaper than|at most|no more than|up to)\s+(?:rs\.?\s*|lkr\s*|\$\s*)?` + numberPattern)
	morePattern   = regexp.MustCompile(`\b(over|above|more than|greater than|higher than|at least|no less than)\s+(?:rs\.?\s*|lkr\s*|\$\s*)?` + numberPattern)
	topPattern    = regexp.MustCompile(`\btop\s+(\d{1,2})\b`)
)

// Plan builds a plan for message. seed filters are prepended unchanged.
// ok is false when neither signals nor seed give the plan anything to select on.
func (p *Planner) Plan(message string, signals Signals, seed []Filter) (*Plan, bool) {
	lower := strings.ToLower(message)

	if plan, ok := p.institutionListing(lower, signals, seed); ok {
		return plan, true
	}

	table, _ := p.schema.Table(catalog.TableProducts)
	plan := &Plan{
		TargetTable: catalog.TableProducts,
		Limit:       p.defaultLimit,
	}
	plan.Filters = append(plan.Filters, seed...)

	switch len(signals.Institutions) {
	case 0:
	case 1:
		plan.Filters = append(plan.Filters, Filter{Field: "institution", Operator: OpContains, Value: signals.Institutions[0].SearchTerm()})
	default:
		names := make([]string, 0, len(signals.Institutions))
		for _, inst := range signals.Institutions {
			names = append(names, inst.Name)
		}
		plan.Filters = append(plan.Filters, Filter{Field: "institution", Operator: OpIn, Value: names})
	}

	if signals.Category != nil {
		plan.Filters = append(plan.Filters, Filter{Field: "category", Operator: OpContains, Value: signals.Category.Term})
	}

	numeric := numericFields(signals.Fields)
	plan.Filters = append(plan.Filters, comparisons(lower, numeric)...)

	if order, ok := superlative(lower, signals.Fields); ok {
		plan.OrderBy = order
		plan.Limit = 5
	}
	if m := topPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			plan.Limit = n
			if plan.OrderBy == nil && len(numeric) > 0 {
				plan.OrderBy = &Order{Field: numeric[0].Name, Desc: true}
			}
		}
	}

	plan.Projection = append([]string{}, table.DefaultProjection...)
	for _, m := range signals.Fields {
		if !contains(plan.Projection, m.Field.Name) {
			plan.Projection = append(plan.Projection, m.Field.Name)
		}
	}

	if len(plan.Filters) == 0 && len(signals.Fields) == 0 && plan.OrderBy == nil {
		return nil, false
	}
	return plan, true
}

// institutionListing handles "which banks are there" style questions that
// name no product attribute.
func (p *Planner) institutionListing(lower string, signals Signals, seed []Filter) (*Plan, bool) {
	if len(seed) > 0 || signals.Category != nil || len(signals.Institutions) > 0 {
		return nil, false
	}
	if len(signals.Fields) != 1 || signals.Fields[0].Field.Name != "institution" {
		return nil, false
	}
	table, _ := p.schema.Table(catalog.TableInstitutions)
	return &Plan{
		TargetTable: catalog.TableInstitutions,
		Projection:  append([]string{}, table.DefaultProjection...),
		OrderBy:     &Order{Field: "name"},
		Limit:       p.defaultLimit,
	}, true
}

func numericFields(matches []catalog.FieldMatch) []catalog.Field {
	var out []catalog.Field
	for _, m := range matches {
		if m.Field.Kind == catalog.KindNumber {
			out = append(out, m.Field)
		}
	}
	return out
}

func comparisons(lower string, numeric []catalog.Field) []Filter {
	var filters []Filter
	add := func(pattern *regexp.Regexp, inclusive, exclusive Operator) {
		for _, m := range pattern.FindAllStringSubmatch(lower, -1) {
			value, ok := parseAmount(m[2], m[3])
			if !ok {
				continue
			}
			field, ok := comparisonField(numeric, m[3])
			if !ok {
				continue
			}
			op := exclusive
			if strings.HasPrefix(m[1], "at ") || strings.HasPrefix(m[1], "no ") || m[1] == "up to" {
				op = inclusive
			}
			filters = append(filters, Filter{Field: field, Operator: op, Value: value})
		}
	}
	add(lessPattern, OpLte, OpLt)
	add(morePattern, OpGte, OpGt)
	return filters
}

// comparisonField picks the field a bare number refers to. Percentages go to
// the first rate-like field, amounts to the first other numeric field.
func comparisonField(numeric []catalog.Field, unit string) (string, bool) {
	percent := unit == "%" || unit == "percent"
	for _, f := range numeric {
		isRate := strings.Contains(strings.ToLower(f.Label), "%")
		if isRate == percent {
			return f.Name, true
		}
	}
	if percent && len(numeric) == 0 {
		return "interestRate", true
	}
	return "", false
}

func parseAmount(number, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch unit {
	case "k", "thousand":
		v *= 1000
	case "m", "million":
		v *= 1000000
	}
	return v, true
}

// superlative orders by the numeric field named after the cue ("lowest fees"),
// falling back to the first numeric field mentioned, then to interestRate.
func superlative(lower string, matches []catalog.FieldMatch) (*Order, bool) {
	cueAt, desc := -1, false
	for _, cue := range ascendingCues {
		if i := catalog.PhraseIndex(lower, cue); i >= 0 {
			cueAt = i
			break
		}
	}
	if cueAt < 0 {
		for _, cue := range descendingCues {
			if i := catalog.PhraseIndex(lower, cue); i >= 0 {
				cueAt, desc = i, true
				break
			}
		}
	}
	if cueAt < 0 {
		return nil, false
	}

	field := ""
	for _, m := range matches {
		if m.Field.Kind != catalog.KindNumber {
			continue
		}
		if field == "" {
			field = m.Field.Name
		}
		if m.Offset > cueAt {
			field = m.Field.Name
			break
		}
	}
	if field == "" {
		field = "interestRate"
	}
	return &Order{Field: field, Desc: desc}, true
}
