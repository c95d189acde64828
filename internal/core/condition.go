package core

import "fmt"

// Operator defines how a claim value is compared.
type Operator string

const (
	OpEqual Operator = "equals"
	// OpContains means the claim value contains the given substring or item.
	// for strings: "orders read write" contains "read"
	// for lists: ["a", "b", "c"] contains "b"
	OpContains Operator = "contains"
	// OpIn means the claim value is in the given list.
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

// Condition represents a single check against a token's claims.
// It is used by the gateway's claim policy on top of the fixed
// issuer/expiry/client-id checks.
type Condition struct {
	// Logic operators
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
	Not *Condition  `json:"not,omitempty"`

	// Leaf condition
	Key      string   `json:"key,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
}

func (c *Condition) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		// it needs to be at least a mapping, anything else is malformed
		return err
	}

	// isExplicit marks whether the condition is spelled out:
	//   { key: scope, operator: contains, value: "read" }
	// or written as shorthand:
	//   { scope: "read" }
	isExplicit := false
	for k := range raw {
		if k == "all" || k == "any" || k == "not" || k == "key" || k == "operator" || k == "value" {
			isExplicit = true
			break
		}
	}

	if isExplicit {
		type plain Condition // prevents recursing back into UnmarshalYAML
		var p plain
		if err := unmarshal(&p); err != nil {
			return err
		}
		*c = Condition(p)

		// implicit equals when the operator is omitted
		if c.Key != "" && c.Operator == "" {
			c.Operator = OpEqual
		}
		return nil
	}

	// shorthand form: every key becomes a leaf, multiple keys become an
	// implicit AND. { scope: { contains: read } } selects the operator.
	var children []Condition
	for k, v := range raw {
		sub := Condition{Key: k}

		if vMap, ok := v.(map[string]any); ok {
			foundOperator := false
			for opKey, opVal := range vMap {
				op := Operator(opKey)
				if op.IsValid() {
					sub.Operator = op
					sub.Value = opVal
					foundOperator = true
					break // one operator per key
				}
			}
			if !foundOperator {
				sub.Operator = OpEqual
				sub.Value = v
			}
		} else {
			sub.Operator = OpEqual
			sub.Value = v
		}

		children = append(children, sub)
	}

	if len(children) == 1 {
		*c = children[0]
	} else {
		c.All = children
	}
	return nil
}

func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}

	hasAll := len(c.All) > 0
	hasAny := len(c.Any) > 0
	hasNot := c.Not != nil
	hasLeaf := c.Key != ""

	if hasAll {
		for _, sub := range c.All {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if hasAny {
		for _, sub := range c.Any {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if hasNot {
		if err := c.Not.Validate(); err != nil {
			return err
		}
	}
	if hasLeaf {
		if !c.Operator.IsValid() {
			return fmt.Errorf("invalid operator '%s' for claim '%s'", c.Operator, c.Key)
		}
	}

	count := 0
	if hasAll {
		count++
	}
	if hasAny {
		count++
	}
	if hasNot {
		count++
	}
	if hasLeaf {
		count++
	}
	if count > 1 {
		return fmt.Errorf("condition for claim '%s' has multiple types set (all, any, not, leaf); only one is allowed", c.Key)
	} else if count == 0 {
		return fmt.Errorf("condition is missing required fields; must be one of (all, any, not, leaf)")
	}
	return nil
}
