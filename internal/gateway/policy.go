package gateway

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/gatepass/gatepass/internal/core"
)

// ClaimPolicy is an optional extra gate on top of the issuer and client
// checks. It evaluates a condition tree and/or a compiled expression
// against the verified token claims.
type ClaimPolicy struct {
	condition *core.Condition
	program   *vm.Program
}

func NewClaimPolicy(condition *core.Condition, program *vm.Program) *ClaimPolicy {
	return &ClaimPolicy{condition: condition, program: program}
}

// Evaluate reports whether the claims satisfy the policy. An evaluation
// error counts as a rejection, never as an admit.
func (p *ClaimPolicy) Evaluate(claims map[string]any) bool {
	if p == nil {
		return true
	}
	if p.condition != nil && !evalCondition(p.condition, claims) {
		return false
	}
	if p.program != nil {
		out, err := expr.Run(p.program, map[string]any{"claims": claims})
		if err != nil {
			log.Warn().Err(err).Msg("claim policy expression failed, rejecting")
			return false
		}
		b, ok := out.(bool)
		if !ok || !b {
			return false
		}
	}
	return true
}

func evalCondition(c *core.Condition, claims map[string]any) bool {
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !evalCondition(&c.All[i], claims) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if evalCondition(&c.Any[i], claims) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !evalCondition(c.Not, claims)
	}
	return evalLeaf(c, claims)
}

func evalLeaf(c *core.Condition, claims map[string]any) bool {
	actual, present := claims[c.Key]

	switch c.Operator {
	case core.OpExists:
		want, ok := c.Value.(bool)
		if !ok {
			want = true
		}
		return present == want
	case core.OpEqual, "":
		return present && looseEqual(actual, c.Value)
	case core.OpContains:
		return present && contains(actual, c.Value)
	case core.OpIn:
		if !present {
			return false
		}
		list := reflect.ValueOf(c.Value)
		if list.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < list.Len(); i++ {
			if looseEqual(actual, list.Index(i).Interface()) {
				return true
			}
		}
		return false
	default:
		log.Warn().Str("operator", string(c.Operator)).Msg("unknown claim policy operator, rejecting")
		return false
	}
}

// looseEqual compares across the numeric types that JSON and YAML
// decoding produce for the same logical value.
func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aOk := toFloat(a)
	bf, bOk := toFloat(b)
	return aOk && bOk && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// contains matches substrings on string claims and membership on list
// claims, including space separated scope strings.
func contains(actual, want any) bool {
	wantStr := fmt.Sprintf("%v", want)
	switch v := actual.(type) {
	case string:
		if strings.Contains(v, " ") {
			for _, part := range strings.Fields(v) {
				if part == wantStr {
					return true
				}
			}
			return false
		}
		return strings.Contains(v, wantStr)
	}
	list := reflect.ValueOf(actual)
	if list.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < list.Len(); i++ {
		if looseEqual(list.Index(i).Interface(), want) {
			return true
		}
	}
	return false
}
