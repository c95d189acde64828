package gateway

import (
	"testing"

	"github.com/expr-lang/expr/vm"

	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/validation"
)

func mustCompile(t *testing.T, src string) *vm.Program {
	t.Helper()
	prog, err := validation.CompileClaimExpr(src)
	if err != nil {
		t.Fatalf("compiling %q: %v", src, err)
	}
	return prog
}

func TestEvalCondition(t *testing.T) {
	claims := map[string]any{
		"sub":    "svc-orders",
		"scope":  "read write",
		"groups": []any{"engineering", "oncall"},
		"level":  float64(3),
	}

	tests := []struct {
		name string
		cond core.Condition
		want bool
	}{
		{
			name: "equals match",
			cond: core.Condition{Key: "sub", Operator: core.OpEqual, Value: "svc-orders"},
			want: true,
		},
		{
			name: "equals mismatch",
			cond: core.Condition{Key: "sub", Operator: core.OpEqual, Value: "svc-billing"},
			want: false,
		},
		{
			name: "equals across numeric types",
			cond: core.Condition{Key: "level", Operator: core.OpEqual, Value: uint64(3)},
			want: true,
		},
		{
			name: "contains in space separated scope",
			cond: core.Condition{Key: "scope", Operator: core.OpContains, Value: "write"},
			want: true,
		},
		{
			name: "contains misses scope",
			cond: core.Condition{Key: "scope", Operator: core.OpContains, Value: "admin"},
			want: false,
		},
		{
			name: "contains in list claim",
			cond: core.Condition{Key: "groups", Operator: core.OpContains, Value: "oncall"},
			want: true,
		},
		{
			name: "in list of values",
			cond: core.Condition{Key: "sub", Operator: core.OpIn, Value: []any{"svc-orders", "svc-billing"}},
			want: true,
		},
		{
			name: "exists",
			cond: core.Condition{Key: "scope", Operator: core.OpExists, Value: true},
			want: true,
		},
		{
			name: "exists false wants absence",
			cond: core.Condition{Key: "email", Operator: core.OpExists, Value: false},
			want: true,
		},
		{
			name: "missing claim never equals",
			cond: core.Condition{Key: "email", Operator: core.OpEqual, Value: ""},
			want: false,
		},
		{
			name: "all requires every child",
			cond: core.Condition{All: []core.Condition{
				{Key: "sub", Operator: core.OpEqual, Value: "svc-orders"},
				{Key: "scope", Operator: core.OpContains, Value: "admin"},
			}},
			want: false,
		},
		{
			name: "any requires one child",
			cond: core.Condition{Any: []core.Condition{
				{Key: "scope", Operator: core.OpContains, Value: "admin"},
				{Key: "groups", Operator: core.OpContains, Value: "oncall"},
			}},
			want: true,
		},
		{
			name: "not inverts",
			cond: core.Condition{Not: &core.Condition{Key: "sub", Operator: core.OpEqual, Value: "svc-billing"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalCondition(&tt.cond, claims); got != tt.want {
				t.Errorf("evalCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimPolicy_Evaluate(t *testing.T) {
	claims := map[string]any{"sub": "svc-orders", "scope": "read write"}

	t.Run("nil policy admits", func(t *testing.T) {
		var p *ClaimPolicy
		if !p.Evaluate(claims) {
			t.Error("nil policy should admit")
		}
	})

	t.Run("condition and expression both gate", func(t *testing.T) {
		p := NewClaimPolicy(
			&core.Condition{Key: "scope", Operator: core.OpContains, Value: "read"},
			mustCompile(t, `claims.sub startsWith "svc-"`),
		)
		if !p.Evaluate(claims) {
			t.Error("policy should admit matching claims")
		}
		if p.Evaluate(map[string]any{"sub": "user-1", "scope": "read"}) {
			t.Error("policy should reject a non service subject")
		}
	})

	t.Run("expression error rejects", func(t *testing.T) {
		p := NewClaimPolicy(nil, mustCompile(t, `claims.missing.deep == "x"`))
		if p.Evaluate(claims) {
			t.Error("erroring expression must reject, not admit")
		}
	})
}
