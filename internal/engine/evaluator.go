package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

func (p *Policy) evaluateCondition(cond *core.Condition, attrs map[string]any) core.ConditionResult {
	// AND
	if len(cond.All) > 0 {
		res := core.ConditionResult{Label: "AND", Matched: true}
		for i := range cond.All {
			child := p.evaluateCondition(&cond.All[i], attrs)
			res.Children = append(res.Children, child)
			if !child.Matched {
				res.Matched = false
			}
		}
		return res
	}

	// OR
	if len(cond.Any) > 0 {
		res := core.ConditionResult{Label: "OR"}
		for i := range cond.Any {
			child := p.evaluateCondition(&cond.Any[i], attrs)
			res.Children = append(res.Children, child)
			if child.Matched {
				res.Matched = true
			}
		}
		return res
	}

	// NOT
	if cond.Not != nil {
		child := p.evaluateCondition(cond.Not, attrs)
		return core.ConditionResult{
			Label:    "NOT",
			Matched:  !child.Matched,
			Children: []core.ConditionResult{child},
		}
	}

	if cond.Expr != "" {
		return p.evaluateExpr(cond.Expr, attrs)
	}
	return evaluateLeaf(cond, attrs)
}

func (p *Policy) evaluateExpr(code string, attrs map[string]any) core.ConditionResult {
	res := core.ConditionResult{Expression: code}
	program, ok := p.programs[code]
	if !ok {
		res.Reason = "expression was not compiled"
		return res
	}
	out, err := expr.Run(program, attrs)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	matched, _ := out.(bool)
	res.Matched = matched
	if !matched {
		res.Reason = "expression is false"
	}
	return res
}

func evaluateLeaf(cond *core.Condition, attrs map[string]any) core.ConditionResult {
	res := core.ConditionResult{
		Expression: fmt.Sprintf("%s %s %v", cond.Key, cond.Operator, cond.Value),
	}
	actual, exists := attrs[cond.Key]

	switch cond.Operator {
	case core.OpExists:
		res.Matched = exists && actual != nil
		if !res.Matched {
			res.Reason = "attribute is missing"
		}
		return res
	}

	if !exists {
		res.Reason = "attribute is missing"
		return res
	}

	switch cond.Operator {
	case core.OpEqual:
		res.Matched = deepEqual(actual, cond.Value)
	case core.OpContains:
		res.Matched = contains(actual, cond.Value)
	case core.OpIn:
		res.Matched = contains(cond.Value, actual)
	default:
		res.Reason = fmt.Sprintf("unknown operator '%s'", cond.Operator)
		return res
	}
	if !res.Matched {
		res.Reason = fmt.Sprintf("actual value is %v", actual)
	}
	return res
}

// deepEqual compares values, treating numbers of different types as equal when
// they have the same value. Claims decoded from JSON are float64 while YAML
// config yields int or uint64.
func deepEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// contains checks whether container holds item: substring for strings,
// element for slices and arrays, key for maps.
func contains(container, item any) bool {
	if s, ok := container.(string); ok {
		sub, ok := item.(string)
		return ok && strings.Contains(s, sub)
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if deepEqual(rv.Index(i).Interface(), item) {
				return true
			}
		}
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			if deepEqual(key.Interface(), item) {
				return true
			}
		}
	}
	return false
}
