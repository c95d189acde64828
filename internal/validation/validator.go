package validation

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gatepass/gatepass/internal/core"
)

// ValidateRegistrations checks provider registrations for completeness and
// uniqueness. Registrations are the broker's lookup table; a broken entry
// should fail at load time, not on the first token fetch.
func ValidateRegistrations(regs []core.ProviderRegistration) error {
	seenNames := make(map[string]struct{})

	for i, reg := range regs {
		if reg.Name == "" {
			return fmt.Errorf("provider #%d missing name", i)
		}
		if _, exists := seenNames[reg.Name]; exists {
			return fmt.Errorf("provider name '%s' is not unique", reg.Name)
		}
		seenNames[reg.Name] = struct{}{}

		if err := ValidateRegistration(reg); err != nil {
			return err
		}
	}

	return nil
}

// ValidateRegistration checks a single registration.
func ValidateRegistration(reg core.ProviderRegistration) error {
	if reg.Name == "" {
		return fmt.Errorf("registration missing name")
	}
	if reg.DiscoveryURL == "" {
		return fmt.Errorf("provider '%s' missing discovery_url", reg.Name)
	}
	if !strings.HasPrefix(reg.DiscoveryURL, "http://") && !strings.HasPrefix(reg.DiscoveryURL, "https://") {
		return fmt.Errorf("provider '%s' has invalid discovery_url '%s'", reg.Name, reg.DiscoveryURL)
	}
	if reg.ClientID == "" {
		return fmt.Errorf("provider '%s' missing client_id", reg.Name)
	}
	if reg.SecretRef.IsZero() {
		return fmt.Errorf("provider '%s' missing secret_ref", reg.Name)
	}
	if reg.GrantType != core.GrantClientCredentials {
		return fmt.Errorf("provider '%s' has unsupported grant_type '%s' (only '%s' is allowed)",
			reg.Name, reg.GrantType, core.GrantClientCredentials)
	}
	return nil
}

// ValidateClaimPolicy checks a gateway claim policy and compiles the
// expression form. Either the condition or the expression may be set,
// not both.
func ValidateClaimPolicy(cond *core.Condition, exprSrc string) error {
	if cond != nil && exprSrc != "" {
		return fmt.Errorf("both condition and expr set; only one is allowed")
	}
	if cond != nil {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("validating condition: %w", err)
		}
	}
	if exprSrc != "" {
		if _, err := CompileClaimExpr(exprSrc); err != nil {
			return err
		}
	}
	return nil
}

// CompileClaimExpr compiles a claim expression. The expression sees the
// token claims under the `claims` variable and must evaluate to a bool.
func CompileClaimExpr(src string) (*vm.Program, error) {
	out, err := expr.Compile(src, expr.AsBool(), expr.Env(map[string]any{
		"claims": map[string]any{},
	}))
	if err != nil {
		return nil, fmt.Errorf("compiling claim expr: %w", err)
	}
	return out, nil
}
