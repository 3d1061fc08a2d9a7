package structured

import (
	"fmt"
	"strings"

	"finverse-chatbot/pkg/catalog"
)

// DefaultResultCap bounds every structured retrieval
const DefaultResultCap = 20

// Clause is one parameterized WHERE condition. SQL only ever holds trusted
// column expressions and ? placeholders; user values live in Args.
type Clause struct {
	SQL  string
	Args []interface{}
}

// CompiledQuery is a read-only, parameterized query ready for execution
type CompiledQuery struct {
	From   string
	Select []string
	Where  []Clause
	Order  string
	Limit  int
}

// Compile translates a validated plan into a parameterized query.
// It re-validates, so an unvalidated plan can never reach the database.
func Compile(plan *Plan, schema *catalog.SchemaDescriptor, resultCap int) (*CompiledQuery, error) {
	if err := Validate(plan, schema); err != nil {
		return nil, err
	}
	if resultCap <= 0 {
		resultCap = DefaultResultCap
	}
	table, _ := schema.Table(plan.TargetTable)

	q := &CompiledQuery{From: table.From}

	projection := plan.Projection
	if len(projection) == 0 {
		projection = table.DefaultProjection
	}
	if plan.OrderBy != nil && !contains(projection, plan.OrderBy.Field) {
		projection = append(append([]string{}, projection...), plan.OrderBy.Field)
	}
	for _, name := range projection {
		field, _ := table.Field(name)
		q.Select = append(q.Select, fmt.Sprintf("%s AS %q", field.Column, field.Name))
	}

	if table.BaseWhere != "" {
		q.Where = append(q.Where, Clause{SQL: table.BaseWhere})
	}
	for _, f := range plan.Filters {
		field, _ := table.Field(f.Field)
		q.Where = append(q.Where, compileFilter(field, f))
	}

	if plan.OrderBy != nil {
		field, _ := table.Field(plan.OrderBy.Field)
		direction := "ASC"
		if plan.OrderBy.Desc {
			direction = "DESC"
		}
		q.Order = fmt.Sprintf("%s %s NULLS LAST", field.Column, direction)
	}

	q.Limit = plan.Limit
	if q.Limit <= 0 || q.Limit > resultCap {
		q.Limit = resultCap
	}
	return q, nil
}

func compileFilter(field catalog.Field, f Filter) Clause {
	expr := field.FilterExpr()
	switch f.Operator {
	case OpEq:
		if field.Kind == catalog.KindText {
			return Clause{SQL: fmt.Sprintf("LOWER(%s) = LOWER(?)", expr), Args: []interface{}{f.Value}}
		}
		return Clause{SQL: fmt.Sprintf("%s = ?", expr), Args: []interface{}{f.Value}}
	case OpIn:
		values, _ := toList(f.Value)
		if field.Kind == catalog.KindText {
			lowered := make([]string, 0, len(values))
			for _, v := range values {
				lowered = append(lowered, strings.ToLower(fmt.Sprint(v)))
			}
			return Clause{SQL: fmt.Sprintf("LOWER(%s) IN (?)", expr), Args: []interface{}{lowered}}
		}
		return Clause{SQL: fmt.Sprintf("%s IN (?)", expr), Args: []interface{}{values}}
	case OpContains:
		pattern := "%" + escapeLike(strings.TrimSpace(f.Value.(string))) + "%"
		return Clause{SQL: fmt.Sprintf("%s ILIKE ?", expr), Args: []interface{}{pattern}}
	default:
		return Clause{SQL: fmt.Sprintf("%s %s ?", expr, numericOperators[f.Operator]), Args: []interface{}{f.Value}}
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
