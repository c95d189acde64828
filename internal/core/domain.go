package core

import "time"

// GrantClientCredentials is the only grant type machine clients may use.
const GrantClientCredentials = "client_credentials"

// WorkloadIdentity is the fine-grained caller principal that cached tokens
// are scoped to. Two callers sharing an execution role but running as
// different agents resolve to distinct identities and never share tokens.
type WorkloadIdentity struct {
	// Ref is the unique identity reference (e.g. "role/orders#workload/order-agent").
	Ref string `json:"ref"`

	// ExecutionRole is the coarse role the workload executes under.
	ExecutionRole string `json:"execution_role"`
}

// SecretRef names a SecretRecord within a namespace.
type SecretRef struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Name      string `yaml:"name" json:"name"`
}

func (r SecretRef) String() string {
	return r.Namespace + "/" + r.Name
}

// IsZero reports whether the ref is empty.
func (r SecretRef) IsZero() bool {
	return r.Namespace == "" && r.Name == ""
}

// SecretValue is the stored machine client credential pair.
// Only these two fields are ever mirrored between namespaces.
type SecretValue struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
}

// ProviderRegistration maps a logical provider name to issuer metadata and
// the secret holding the machine client credentials. It is created once at
// provisioning time and looked up by name on every token fetch.
type ProviderRegistration struct {
	// Name is the logical provider name callers use (e.g. "acme-gateway-auth").
	Name string `yaml:"name" json:"name"`

	// DiscoveryURL is the issuer's OIDC discovery document URL.
	DiscoveryURL string `yaml:"discovery_url" json:"discovery_url"`

	// ClientID of the machine client. Kept alongside the secret ref so the
	// registration can be verified without reading the secret.
	ClientID string `yaml:"client_id" json:"client_id"`

	// SecretRef points at the SecretRecord holding the client credentials.
	SecretRef SecretRef `yaml:"secret_ref" json:"secret_ref"`

	// GrantType must be "client_credentials".
	GrantType string `yaml:"grant_type" json:"grant_type"`

	// Scopes are space-joined into the token request.
	Scopes []string `yaml:"scopes" json:"scopes"`

	// Options carries exchanger-specific settings (auth style, extra
	// endpoint params). Interpretation is up to the exchanger.
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Token is an issued bearer token.
type Token struct {
	// Value is the actual bearer token string.
	Value string `json:"value"`

	// TokenType as reported by the issuer (usually "Bearer").
	TokenType string `json:"token_type"`

	// Fingerprint is a non-reversible identifier for tracability.
	Fingerprint string `json:"fingerprint"`

	// ExpiresAt indicates when this token becomes invalid.
	ExpiresAt time.Time `json:"expires_at"`

	// Provider is the logical provider name that produced this token.
	Provider string `json:"provider"`
}

// Expired reports whether the token is unusable at the given instant.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// CacheEntry describes a cached token without exposing its value.
type CacheEntry struct {
	Identity    WorkloadIdentity `json:"identity"`
	Provider    string           `json:"provider"`
	Fingerprint string           `json:"fingerprint"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

type Fingerprinter func(token string) string
