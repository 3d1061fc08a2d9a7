package structured

import (
	"errors"
	"fmt"
	"strings"

	"finverse-chatbot/pkg/catalog"

	"github.com/google/uuid"
)

// ErrInvalidPlan is returned when a plan references anything the schema does not know
var ErrInvalidPlan = errors.New("invalid structured query plan")

// Operator is a filter comparison from the allow-list
type Operator string

const (
	OpEq       Operator = "eq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

var numericOperators = map[Operator]string{
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Filter restricts rows of the target table
type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// Order sorts the result by one field
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Plan is a structured query over the catalog
type Plan struct {
	TargetTable string   `json:"target_table"`
	Filters     []Filter `json:"filters"`
	Projection  []string `json:"projection"`
	OrderBy     *Order   `json:"order_by,omitempty"`
	Limit       int      `json:"limit"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}

// Validate checks every identifier and operator of plan against the descriptor.
// It fails closed: the first unknown table, field or operator rejects the whole plan.
func Validate(plan *Plan, schema *catalog.SchemaDescriptor) error {
	if plan == nil {
		return invalid("nil plan")
	}
	table, ok := schema.Table(plan.TargetTable)
	if !ok {
		return invalid("unknown table %q", plan.TargetTable)
	}

	for _, name := range plan.Projection {
		if _, ok := table.Field(name); !ok {
			return invalid("unknown projection field %q", name)
		}
	}

	for _, f := range plan.Filters {
		field, ok := table.Field(f.Field)
		if !ok {
			return invalid("unknown filter field %q", f.Field)
		}
		if err := validateFilter(field, f); err != nil {
			return err
		}
	}

	if plan.OrderBy != nil {
		field, ok := table.Field(plan.OrderBy.Field)
		if !ok {
			return invalid("unknown order field %q", plan.OrderBy.Field)
		}
		if field.Kind != catalog.KindNumber && field.Kind != catalog.KindText {
			return invalid("field %q cannot be ordered", field.Name)
		}
	}

	if plan.Limit < 0 {
		return invalid("negative limit")
	}
	return nil
}

func validateFilter(field catalog.Field, f Filter) error {
	switch f.Operator {
	case OpEq:
		if f.Value == nil {
			return invalid("eq on %q needs a value", field.Name)
		}
		if err := checkValue(field, f.Operator, f.Value); err != nil {
			return err
		}
	case OpGt, OpGte, OpLt, OpLte:
		if field.Kind != catalog.KindNumber {
			return invalid("operator %s is only allowed on number fields, %q is %s", f.Operator, field.Name, field.Kind)
		}
		if _, ok := toFloat(f.Value); !ok {
			return invalid("operator %s on %q needs a number", f.Operator, field.Name)
		}
	case OpIn:
		values, ok := toList(f.Value)
		if !ok || len(values) == 0 {
			return invalid("in on %q needs a non-empty list", field.Name)
		}
		for _, v := range values {
			if err := checkValue(field, f.Operator, v); err != nil {
				return err
			}
		}
	case OpContains:
		if field.Kind != catalog.KindText {
			return invalid("contains is only allowed on text fields, %q is %s", field.Name, field.Kind)
		}
		s, ok := f.Value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return invalid("contains on %q needs a string", field.Name)
		}
	default:
		return invalid("operator %q is not allowed", f.Operator)
	}
	return nil
}

// checkValue rejects a value the column type cannot hold, so it fails here
// instead of in the database.
func checkValue(field catalog.Field, op Operator, v interface{}) error {
	switch field.Kind {
	case catalog.KindNumber:
		if _, ok := toFloat(v); !ok {
			return invalid("%s on %q needs a number", op, field.Name)
		}
	case catalog.KindBool:
		if _, ok := v.(bool); !ok {
			return invalid("%s on %q needs true or false", op, field.Name)
		}
	case catalog.KindID:
		switch id := v.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.Parse(id); err != nil {
				return invalid("%s on %q needs a UUID, got %q", op, field.Name, id)
			}
		default:
			return invalid("%s on %q needs a UUID", op, field.Name)
		}
	case catalog.KindText:
		if _, ok := v.(string); !ok {
			return invalid("%s on %q needs a string", op, field.Name)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
