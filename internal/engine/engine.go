// Package engine decides whether a principal satisfies an access condition.
package engine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

// Policy is a validated condition with its expressions compiled.
type Policy struct {
	cond     core.Condition
	programs map[string]*vm.Program
}

// Compile validates cond and compiles every expr leaf it contains.
func Compile(cond core.Condition) (*Policy, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cond:     cond,
		programs: make(map[string]*vm.Program),
	}
	if err := p.compile(&cond); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) compile(cond *core.Condition) error {
	for i := range cond.All {
		if err := p.compile(&cond.All[i]); err != nil {
			return err
		}
	}
	for i := range cond.Any {
		if err := p.compile(&cond.Any[i]); err != nil {
			return err
		}
	}
	if cond.Not != nil {
		if err := p.compile(cond.Not); err != nil {
			return err
		}
	}
	if cond.Expr == "" {
		return nil
	}
	if _, ok := p.programs[cond.Expr]; ok {
		return nil
	}
	program, err := expr.Compile(cond.Expr,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return fmt.Errorf("compiling expression %q: %w", cond.Expr, err)
	}
	p.programs[cond.Expr] = program
	return nil
}

// Evaluate checks the principal against the policy and returns the full trace.
func (p *Policy) Evaluate(principal *core.Principal) core.ConditionResult {
	return p.evaluateCondition(&p.cond, Attributes(principal))
}

// Allow reports whether the principal satisfies the policy.
func (p *Policy) Allow(principal *core.Principal) bool {
	if principal == nil {
		return false
	}
	return p.Evaluate(principal).Matched
}

// Attributes flattens a principal into the map conditions are checked against.
// sub and email always win over claims of the same name.
func Attributes(principal *core.Principal) map[string]any {
	attrs := make(map[string]any)
	if principal == nil {
		return attrs
	}
	for k, v := range principal.Claims {
		attrs[k] = v
	}
	attrs["sub"] = principal.Subject
	attrs["email"] = principal.Email
	return attrs
}

// Explain renders a trace as indented lines, failed leaves marked with their reason.
func Explain(result core.ConditionResult) string {
	var lines []string
	flattenConditionResult(result, 0, &lines)
	return strings.Join(lines, "\n")
}

func flattenConditionResult(result core.ConditionResult, depth int, lines *[]string) {
	mark := "✗"
	if result.Matched {
		mark = "✓"
	}
	indent := strings.Repeat("  ", depth)

	if result.Label != "" {
		*lines = append(*lines, fmt.Sprintf("%s%s %s", indent, mark, result.Label))
		for _, child := range result.Children {
			flattenConditionResult(child, depth+1, lines)
		}
		return
	}

	line := fmt.Sprintf("%s%s %s", indent, mark, result.Expression)
	if result.Reason != "" {
		line += " (" + result.Reason + ")"
	}
	*lines = append(*lines, line)
}
