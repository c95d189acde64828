package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gatepass/gatepass/internal/core"
)

type fakeIssuer struct {
	srv            *httptest.Server
	discoveryCalls atomic.Int64
	exchangeCalls  atomic.Int64

	tokenStatus int
	tokenDelay  time.Duration
	lastForm    map[string]string
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	f := &fakeIssuer{tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		f.discoveryCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":         f.srv.URL,
			"token_endpoint": f.srv.URL + "/oauth2/token",
			"jwks_uri":       f.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.exchangeCalls.Add(1)
		if f.tokenDelay > 0 {
			time.Sleep(f.tokenDelay)
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastForm = map[string]string{}
		for k := range r.PostForm {
			f.lastForm[k] = r.PostForm.Get(k)
		}
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) registration() core.ProviderRegistration {
	return core.ProviderRegistration{
		Name:         "acme-gateway-auth",
		DiscoveryURL: f.srv.URL + "/.well-known/openid-configuration",
		ClientID:     "abc123",
		SecretRef:    core.SecretRef{Namespace: "gatepass", Name: "acme-client"},
		GrantType:    core.GrantClientCredentials,
		Scopes:       []string{"read", "write"},
		Options: map[string]any{
			"auth_style": "params",
		},
	}
}

func TestExchange_SendsClientCredentialsForm(t *testing.T) {
	f := newFakeIssuer(t)
	ex := NewClientCredentialsExchanger(f.srv.Client())

	tok, err := ex.Exchange(context.Background(), f.registration(), core.SecretValue{
		ClientID:     "abc123",
		ClientSecret: "s3cr3t",
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if tok.Value != "issued-token" || tok.TokenType != "Bearer" {
		t.Errorf("Exchange() = %+v, want issued-token/Bearer", tok)
	}
	if tok.ExpiresAt.IsZero() || !tok.ExpiresAt.After(time.Now()) {
		t.Errorf("Exchange() expiry = %v, want future", tok.ExpiresAt)
	}

	wantForm := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "abc123",
		"client_secret": "s3cr3t",
		"scope":         "read write",
	}
	for k, want := range wantForm {
		if got := f.lastForm[k]; got != want {
			t.Errorf("token request form[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestExchange_DiscoversEndpointOnce(t *testing.T) {
	f := newFakeIssuer(t)
	ex := NewClientCredentialsExchanger(f.srv.Client())
	secret := core.SecretValue{ClientID: "abc123", ClientSecret: "s3cr3t"}

	for i := 0; i < 3; i++ {
		if _, err := ex.Exchange(context.Background(), f.registration(), secret); err != nil {
			t.Fatalf("Exchange() #%d error = %v", i, err)
		}
	}

	if got := f.discoveryCalls.Load(); got != 1 {
		t.Errorf("discovery document fetched %d times, want 1", got)
	}
	if got := f.exchangeCalls.Load(); got != 3 {
		t.Errorf("token endpoint hit %d times, want 3", got)
	}
}

func TestExchange_UpstreamError(t *testing.T) {
	f := newFakeIssuer(t)
	f.tokenStatus = http.StatusUnauthorized
	ex := NewClientCredentialsExchanger(f.srv.Client())

	_, err := ex.Exchange(context.Background(), f.registration(), core.SecretValue{ClientID: "abc123", ClientSecret: "bad"})
	if !errors.Is(err, core.ErrUpstream) {
		t.Fatalf("Exchange() error = %v, want ErrUpstream", err)
	}
}

func TestExchange_Timeout(t *testing.T) {
	f := newFakeIssuer(t)
	ex := NewClientCredentialsExchanger(f.srv.Client())
	secret := core.SecretValue{ClientID: "abc123", ClientSecret: "s3cr3t"}

	// warm the discovery cache so the deadline hits the exchange itself
	if _, err := ex.Exchange(context.Background(), f.registration(), secret); err != nil {
		t.Fatalf("warmup Exchange() error = %v", err)
	}

	f.tokenDelay = 500 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ex.Exchange(ctx, f.registration(), secret)
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("Exchange() error = %v, want ErrTimeout", err)
	}
}
