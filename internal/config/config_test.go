package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gatepass/gatepass/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatepass.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
broker:
  namespace: gatepass
providers:
  - name: acme-gateway-auth
    discovery_url: https://idp.example/.well-known/openid-configuration
    client_id: abc123
    secret_ref:
      namespace: gatepass
      name: acme-client
    grant_type: client_credentials
    scopes: [read, write]
secrets:
  - ref:
      namespace: gatepass
      name: acme-client
    value:
      client_id: abc123
      client_secret: s3cr3t
    readers:
      - role/agent-runner
gateway:
  issuer_url: https://idp.example
  allowed_clients: [abc123]
  target_url: http://orders.internal:9000
  claim_policy:
    condition:
      scope: { contains: read }
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// defaults
	if cfg.Broker.Addr != ":8080" {
		t.Errorf("Broker.Addr = %q, want default :8080", cfg.Broker.Addr)
	}
	if cfg.Broker.CacheTTL != time.Hour {
		t.Errorf("Broker.CacheTTL = %v, want default 1h", cfg.Broker.CacheTTL)
	}
	if cfg.Broker.CacheSkew != 30*time.Second {
		t.Errorf("Broker.CacheSkew = %v, want default 30s", cfg.Broker.CacheSkew)
	}
	if cfg.Gateway.Addr != ":8081" {
		t.Errorf("Gateway.Addr = %q, want default :8081", cfg.Gateway.Addr)
	}

	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "acme-gateway-auth" {
		t.Fatalf("Providers = %+v", cfg.Providers)
	}
	if got := cfg.Providers[0].SecretRef; got != (core.SecretRef{Namespace: "gatepass", Name: "acme-client"}) {
		t.Errorf("SecretRef = %+v", got)
	}

	// shorthand condition parsed into a contains leaf
	cond := cfg.Gateway.ClaimPolicy.Condition
	if cond == nil || cond.Key != "scope" || cond.Operator != core.OpContains || cond.Value != "read" {
		t.Errorf("claim policy condition = %+v", cond)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name: "duplicate provider name",
			mutate: func(c string) string {
				dup := `
  - name: acme-gateway-auth
    discovery_url: https://other.example/.well-known/openid-configuration
    client_id: zzz
    secret_ref:
      namespace: gatepass
      name: other
    grant_type: client_credentials
`
				return strings.Replace(c, "secrets:", dup+"secrets:", 1)
			},
			wantErr: "not unique",
		},
		{
			name: "non client-credentials grant",
			mutate: func(c string) string {
				return strings.Replace(c, "grant_type: client_credentials", "grant_type: authorization_code", 1)
			},
			wantErr: "grant",
		},
		{
			name: "gateway without allowed clients",
			mutate: func(c string) string {
				return strings.Replace(c, "  allowed_clients: [abc123]\n", "", 1)
			},
			wantErr: "allowed_clients",
		},
		{
			name: "gateway without target",
			mutate: func(c string) string {
				return strings.Replace(c, "  target_url: http://orders.internal:9000\n", "", 1)
			},
			wantErr: "target_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(validConfig)))
			if err == nil {
				t.Fatal("Load() accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
