package gateway

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/gatepass/gatepass/internal/core"
)

// Principal is the identity admitted by the gateway.
type Principal struct {
	Subject  string
	ClientID string
	Claims   map[string]any
}

// Authorizer verifies inbound bearer tokens against the configured
// issuer's signing keys and enforces the client allow list plus the
// optional claim policy. Callers surface every rejection as the same
// generic unauthorized response; the reasons only go to the log.
type Authorizer struct {
	verifier       *oidc.IDTokenVerifier
	allowedClients map[string]struct{}
	policy         *ClaimPolicy
}

// NewAuthorizer discovers the issuer's JWKS endpoint and builds the
// verifier. The audience check is skipped because the machine clients
// authenticate by client id, which is checked explicitly below.
func NewAuthorizer(ctx context.Context, issuerURL string, allowedClients []string, policy *ClaimPolicy) (*Authorizer, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for issuer '%s': %w", issuerURL, err)
	}
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return newAuthorizer(verifier, allowedClients, policy), nil
}

// NewAuthorizerWithVerifier wires a pre-built verifier, mainly for tests
// that run against a local key set.
func NewAuthorizerWithVerifier(verifier *oidc.IDTokenVerifier, allowedClients []string, policy *ClaimPolicy) *Authorizer {
	return newAuthorizer(verifier, allowedClients, policy)
}

func newAuthorizer(verifier *oidc.IDTokenVerifier, allowedClients []string, policy *ClaimPolicy) *Authorizer {
	allowed := make(map[string]struct{}, len(allowedClients))
	for _, c := range allowedClients {
		allowed[c] = struct{}{}
	}
	return &Authorizer{
		verifier:       verifier,
		allowedClients: allowed,
		policy:         policy,
	}
}

// Authorize verifies the raw bearer token. Every failure wraps
// ErrAuthRejected so transport layers map it uniformly.
func (a *Authorizer) Authorize(ctx context.Context, rawToken string) (*Principal, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("missing bearer token: %w", core.ErrAuthRejected)
	}

	// signature, issuer and expiry checks happen here
	idToken, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", core.ErrAuthRejected)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extracting claims: %w", core.ErrAuthRejected)
	}

	clientID := extractClientID(claims)
	if clientID == "" {
		return nil, fmt.Errorf("token carries no client identity: %w", core.ErrAuthRejected)
	}
	if _, ok := a.allowedClients[clientID]; !ok {
		return nil, fmt.Errorf("client '%s' is not allowed: %w", clientID, core.ErrAuthRejected)
	}

	if !a.policy.Evaluate(claims) {
		return nil, fmt.Errorf("claim policy rejected the token: %w", core.ErrAuthRejected)
	}

	return &Principal{
		Subject:  idToken.Subject,
		ClientID: clientID,
		Claims:   claims,
	}, nil
}

// extractClientID prefers the RFC 9068 'client_id' claim and falls back
// to 'azp', which some issuers emit for client credentials tokens.
func extractClientID(claims map[string]any) string {
	if v, ok := claims["client_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := claims["azp"].(string); ok && v != "" {
		return v
	}
	return ""
}
