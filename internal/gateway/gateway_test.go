package gateway

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const testIssuer = "https://idp.test.example"

// testKeys signs tokens and serves the matching JWKS.
type testKeys struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}

	jwks := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "test-key",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return &testKeys{key: key, server: server}
}

// mint signs a token with the test key; overrides patch the base claims.
func (k *testKeys) mint(t *testing.T, overrides map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":       testIssuer,
		"sub":       "svc-orders",
		"client_id": "abc123",
		"iat":       time.Now().Add(-time.Minute).Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scope":     "read write",
	}
	for key, val := range overrides {
		claims[key] = val
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(k.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func (k *testKeys) verifier() *oidc.IDTokenVerifier {
	keySet := oidc.NewRemoteKeySet(context.Background(), k.server.URL)
	return oidc.NewVerifier(testIssuer, keySet, &oidc.Config{SkipClientIDCheck: true})
}

func newTestGateway(t *testing.T, keys *testKeys, target string, policy *ClaimPolicy) http.Handler {
	t.Helper()
	auth := NewAuthorizerWithVerifier(keys.verifier(), []string{"abc123"}, policy)
	gw, err := New(auth, target)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw.Routes()
}

func TestGateway_AdmitsAndRelaysVerbatim(t *testing.T) {
	keys := newTestKeys(t)

	var gotBody string
	var gotHeader http.Header
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer target.Close()

	handler := newTestGateway(t, keys, target.URL, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	payload := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+RelayRoute, strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+keys.mint(t, nil))
	req.Header.Set("Content-Type", "application/json")
	// a spoofed subject header must not survive the relay
	req.Header.Set(SubjectHeader, "svc-imposter")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotBody != payload {
		t.Errorf("target received body %q, want it verbatim", gotBody)
	}
	if got := gotHeader.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, not forwarded", got)
	}
	if got := gotHeader.Get(SubjectHeader); got != "svc-orders" {
		t.Errorf("%s = %q, want verified subject svc-orders", SubjectHeader, got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"result"`) {
		t.Errorf("target response not relayed, got %q", body)
	}
}

func TestGateway_Rejections(t *testing.T) {
	keys := newTestKeys(t)
	otherKeys := newTestKeys(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("target reached by a rejected request")
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	handler := newTestGateway(t, keys, target.URL, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	tests := []struct {
		name   string
		token  string
		header string // raw Authorization header, overrides token
	}{
		{
			name:  "no token",
			token: "",
		},
		{
			name:   "bearer scheme glued to the credentials",
			header: "Bearer" + keys.mint(t, nil),
		},
		{
			name:   "non-bearer scheme carrying a valid token",
			header: "Basic " + keys.mint(t, nil),
		},
		{
			name:  "disallowed client id despite valid signature",
			token: keys.mint(t, map[string]any{"client_id": "evil999"}),
		},
		{
			name:  "expired despite valid signature",
			token: keys.mint(t, map[string]any{"exp": time.Now().Add(-time.Hour).Unix()}),
		},
		{
			name:  "wrong issuer",
			token: keys.mint(t, map[string]any{"iss": "https://other.example"}),
		},
		{
			name:  "signed by an unknown key",
			token: otherKeys.mint(t, nil),
		},
		{
			name:  "garbage token",
			token: "not.a.jwt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+RelayRoute, strings.NewReader(`{}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			} else if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}

			// the response body must not leak why the token was rejected
			body, _ := io.ReadAll(resp.Body)
			if strings.Contains(string(body), "client") || strings.Contains(string(body), "expired") ||
				strings.Contains(string(body), "issuer") || strings.Contains(string(body), "signature") {
				t.Errorf("rejection response leaks detail: %q", body)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"standard", "Bearer abc.def", "abc.def", true},
		{"lowercase scheme", "bearer abc.def", "abc.def", true},
		{"no separator", "Bearerabc.def", "", false},
		{"other scheme", "Basic abc.def", "", false},
		{"scheme without credentials", "Bearer ", "", false},
		{"empty header", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bearerToken(tt.header)
			if got != tt.want || ok != tt.ok {
				t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)",
					tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGateway_ClaimPolicyRejects(t *testing.T) {
	keys := newTestKeys(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	policy := NewClaimPolicy(nil, mustCompile(t, `"admin" in split(claims.scope, " ")`))
	handler := newTestGateway(t, keys, target.URL, policy)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	for _, tt := range []struct {
		name  string
		scope string
		want  int
	}{
		{"scope satisfies policy", "read write admin", http.StatusOK},
		{"scope misses policy", "read write", http.StatusUnauthorized},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+RelayRoute, strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+keys.mint(t, map[string]any{"scope": tt.scope}))

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
