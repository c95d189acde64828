package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/validation"
)

type Config struct {
	Broker    BrokerConfig                `yaml:"broker"`
	Providers []core.ProviderRegistration `yaml:"providers"`
	Secrets   []SecretSeed                `yaml:"secrets"`
	Gateway   *GatewayConfig              `yaml:"gateway"`
	Audit     AuditConfig                 `yaml:"audit"`
	Admin     AdminConfig                 `yaml:"admin"`
}

// BrokerConfig holds settings for the token broker.
type BrokerConfig struct {
	// Addr is the listen address of the broker API.
	Addr string `yaml:"addr"`

	// CacheTTL is the validity window applied when the issuer does not
	// report one. Defaults to 60 minutes.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSkew is subtracted from a cached token's remaining lifetime so
	// a token is never handed out moments before it expires.
	CacheSkew time.Duration `yaml:"cache_skew"`

	// Namespace is the broker-owned secret namespace that mirrored secrets
	// are copied into.
	Namespace string `yaml:"namespace"`
}

// SecretSeed declares a SecretRecord created at startup together with the
// identities allowed to read it.
type SecretSeed struct {
	Ref   core.SecretRef   `yaml:"ref"`
	Value core.SecretValue `yaml:"value"`

	// Readers lists execution roles or workload identity refs granted read
	// access. "*" grants everyone; use only in tests.
	Readers []string `yaml:"readers"`
}

// GatewayConfig holds settings for the gateway authorizer.
type GatewayConfig struct {
	// Addr is the listen address of the gateway.
	Addr string `yaml:"addr"`

	// IssuerURL is the OAuth issuer tokens must originate from.
	IssuerURL string `yaml:"issuer_url"`

	// AllowedClients is the client-id allow-list. A token whose client-id
	// claim is absent from this list is rejected regardless of signature.
	AllowedClients []string `yaml:"allowed_clients"`

	// TargetURL is where admitted requests are forwarded verbatim.
	TargetURL string `yaml:"target_url"`

	// ClaimPolicy optionally restricts admitted tokens further.
	ClaimPolicy *ClaimPolicyConfig `yaml:"claim_policy"`
}

// ClaimPolicyConfig restricts tokens beyond the fixed authorizer checks.
// Either provide Condition or Expr, not both.
type ClaimPolicyConfig struct {
	// Condition is a structural check against token claims.
	Condition *core.Condition `yaml:"condition"`

	// Expr is an expression over the claims map for more complex logic,
	// e.g. `claims.scope contains "read" and claims.version >= 2`.
	Expr string `yaml:"expr"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// AdminConfig holds settings for the admin API surface.
type AdminConfig struct {
	// SigningKey is the HMAC key admin session tokens are verified with.
	SigningKey string `yaml:"signing_key"`
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Broker.Addr == "" {
		c.Broker.Addr = ":8080"
	}
	if c.Broker.CacheTTL == 0 {
		c.Broker.CacheTTL = time.Hour
	}
	if c.Broker.CacheSkew == 0 {
		c.Broker.CacheSkew = 30 * time.Second
	}
	if c.Broker.Namespace == "" {
		c.Broker.Namespace = "gatepass"
	}
	if c.Gateway != nil && c.Gateway.Addr == "" {
		c.Gateway.Addr = ":8081"
	}
}

func (c *Config) Validate() error {
	if err := validation.ValidateRegistrations(c.Providers); err != nil {
		return fmt.Errorf("validating providers: %w", err)
	}

	seenSecrets := make(map[string]struct{})
	for idx, s := range c.Secrets {
		if s.Ref.IsZero() {
			return fmt.Errorf("secret at index %d has empty ref", idx)
		}
		key := s.Ref.String()
		if _, ok := seenSecrets[key]; ok {
			return fmt.Errorf("duplicate secret ref '%s'", key)
		}
		seenSecrets[key] = struct{}{}
	}

	if c.Gateway != nil {
		if c.Gateway.IssuerURL == "" {
			return fmt.Errorf("gateway requires 'issuer_url'")
		}
		if len(c.Gateway.AllowedClients) == 0 {
			return fmt.Errorf("gateway requires a non-empty 'allowed_clients' list")
		}
		if c.Gateway.TargetURL == "" {
			return fmt.Errorf("gateway requires 'target_url'")
		}
		if p := c.Gateway.ClaimPolicy; p != nil {
			if err := validation.ValidateClaimPolicy(p.Condition, p.Expr); err != nil {
				return fmt.Errorf("validating gateway claim policy: %w", err)
			}
		}
	}

	return nil
}
