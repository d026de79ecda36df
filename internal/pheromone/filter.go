package pheromone

import "fmt"

// Operator is a comparison used by Query. Filters are evaluated
// against an entry's field values as read by toFields, keyed by JSON field
// name, so the same six operators work uniformly across all three maps
// without per-type plumbing.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// Filter is one query predicate: Field OP Value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Eq, Gt, Gte, Lt, Lte and In are constructors kept terse for call sites like
// store.QueryStatus(pheromone.Eq("status", pheromone.StatusPending)).
func Eq(field string, value any) Filter  { return Filter{Field: field, Op: OpEq, Value: value} }
func Gt(field string, value any) Filter  { return Filter{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Filter { return Filter{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value any) Filter  { return Filter{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Filter { return Filter{Field: field, Op: OpLte, Value: value} }
func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// match evaluates a single filter against one field value from toFields.
// Numeric comparisons convert both sides to float64 with toFloat, so integer
// and float fields compare alike.
func match(actual any, f Filter) (bool, error) {
	switch f.Op {
	case OpEq:
		return fmt.Sprint(actual) == fmt.Sprint(f.Value), nil
	case OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("pheromone: in filter requires a value slice")
		}
		for _, v := range values {
			if fmt.Sprint(actual) == fmt.Sprint(v) {
				return true, nil
			}
		}
		return false, nil
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(actual)
		b, bok := toFloat(f.Value)
		if !aok || !bok {
			return false, fmt.Errorf("pheromone: %s filter on field %q requires numeric values", f.Op, f.Field)
		}
		switch f.Op {
		case OpGt:
			return a > b, nil
		case OpGte:
			return a >= b, nil
		case OpLt:
			return a < b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, fmt.Errorf("pheromone: unknown operator %q", f.Op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// matchAll reports whether every filter in filters matches the decoded
// entry fields. An empty filter set matches everything.
func matchAll(fields map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		actual, ok := fields[f.Field]
		if !ok {
			return false, nil
		}
		ok2, err := match(actual, f)
		if err != nil {
			return false, err
		}
		if !ok2 {
			return false, nil
		}
	}
	return true, nil
}
