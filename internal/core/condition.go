package core

import "fmt"

// ConditionResult is the evaluation trace of a Condition.
type ConditionResult struct {
	Matched bool `json:"matched"`

	// For leaves
	Expression string `json:"expression,omitempty"` // e.g. "role equals service_role"
	Reason     string `json:"reason,omitempty"`

	// For branching
	Label    string            `json:"label,omitempty"` // e.g. "AND"
	Children []ConditionResult `json:"children,omitempty"`
}

// Operator defines how to compare values.
type Operator string

const (
	OpEqual Operator = "equals"
	// OpContains means the attribute value contains the given substring or item.
	// for strings: "alice@maramap.app" contains "@maramap.app"
	// for lists: ["a", "b", "c"] contains "b"
	OpContains Operator = "contains"
	// OpIn means the attribute value is in the given list.
	// e.g., value "b" in ["a", "b", "c"]
	OpIn     Operator = "in"
	OpExists Operator = "exists"
)

func (op Operator) IsValid() bool {
	switch op {
	case OpEqual, OpContains, OpIn, OpExists:
		return true
	default:
		return false
	}
}

// Condition is a check against the attributes of a Principal: its sub, its
// email and every other claim of its token.
type Condition struct {
	// Logic operators
	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Not *Condition  `json:"not,omitempty" yaml:"not,omitempty"`

	// Leaf condition
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`

	// Expr is a boolean expression over the attributes,
	// e.g. `role == "service_role" && email endsWith "@maramap.app"`
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

var explicitKeys = map[string]bool{
	"all": true, "any": true, "not": true, "key": true, "operator": true, "value": true, "expr": true,
}

// UnmarshalYAML accepts the explicit form
//
//	{ key: role, operator: equals, value: service_role }
//
// and the shorthands { role: service_role } and { groups: { contains: admin } }.
// Several shorthand keys are joined with AND.
func (c *Condition) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	isExplicit := false
	for k := range raw {
		if explicitKeys[k] {
			isExplicit = true
			break
		}
	}

	if isExplicit {
		type plain Condition // prevents recursion
		var p plain
		if err := unmarshal(&p); err != nil {
			return err
		}
		*c = Condition(p)

		// implicit EQ operator if operator missing
		if c.Key != "" && c.Operator == "" {
			c.Operator = OpEqual
		}
		return nil
	}

	children := make([]Condition, 0, len(raw))
	for k, v := range raw {
		children = append(children, shorthand(k, v))
	}

	if len(children) == 1 {
		*c = children[0]
	} else {
		c.All = children
	}
	return nil
}

func shorthand(key string, v any) Condition {
	if vMap, ok := v.(map[string]any); ok && len(vMap) == 1 {
		for opKey, opVal := range vMap {
			if op := Operator(opKey); op.IsValid() {
				return Condition{Key: key, Operator: op, Value: opVal}
			}
		}
	}
	return Condition{Key: key, Operator: OpEqual, Value: v}
}

func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}

	count := 0
	if len(c.All) > 0 {
		count++
		for i := range c.All {
			if err := c.All[i].Validate(); err != nil {
				return err
			}
		}
	}
	if len(c.Any) > 0 {
		count++
		for i := range c.Any {
			if err := c.Any[i].Validate(); err != nil {
				return err
			}
		}
	}
	if c.Not != nil {
		count++
		if err := c.Not.Validate(); err != nil {
			return err
		}
	}
	if c.Key != "" {
		count++
		if !c.Operator.IsValid() {
			return fmt.Errorf("invalid operator '%s' for key '%s'", c.Operator, c.Key)
		}
	}
	if c.Expr != "" {
		count++
	}

	switch count {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("condition is missing required fields; must be one of (all, any, not, expr, leaf)")
	default:
		return fmt.Errorf("condition for key '%s' has multiple types set (all, any, not, expr, leaf); only one is allowed", c.Key)
	}
}
