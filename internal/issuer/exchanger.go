package issuer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/gatepass/gatepass/internal/core"
)

const wellKnownPath = "/.well-known/openid-configuration"

var _ core.Exchanger = (*ClientCredentialsExchanger)(nil)

// ClientCredentialsExchanger performs the client-credentials grant against
// the issuer named by a provider registration. The issuer's token endpoint
// is discovered once per discovery URL and reused; only the credential
// exchange itself happens on every call. Failures are never retried here.
type ClientCredentialsExchanger struct {
	httpClient *http.Client

	mu        sync.Mutex
	endpoints map[string]string // discovery URL -> token endpoint
}

func NewClientCredentialsExchanger(httpClient *http.Client) *ClientCredentialsExchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentialsExchanger{
		httpClient: httpClient,
		endpoints:  make(map[string]string),
	}
}

// exchangeOptions are decoded from a registration's free-form options block.
type exchangeOptions struct {
	// AuthStyle selects how client credentials are sent: "params" puts them
	// in the form body, "header" uses basic auth. Empty lets the oauth2
	// library probe.
	AuthStyle string `mapstructure:"auth_style"`

	// EndpointParams are extra form values sent with the token request.
	EndpointParams map[string]string `mapstructure:"endpoint_params"`
}

func (e *ClientCredentialsExchanger) Exchange(ctx context.Context, reg core.ProviderRegistration, secret core.SecretValue) (core.Token, error) {
	tokenURL, err := e.tokenEndpoint(ctx, reg.DiscoveryURL)
	if err != nil {
		return core.Token{}, err
	}

	var opts exchangeOptions
	if reg.Options != nil {
		if err := mapstructure.Decode(reg.Options, &opts); err != nil {
			return core.Token{}, fmt.Errorf("decoding options for provider '%s': %w", reg.Name, err)
		}
	}

	cfg := clientcredentials.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       reg.Scopes,
	}
	switch opts.AuthStyle {
	case "params":
		cfg.AuthStyle = oauth2.AuthStyleInParams
	case "header":
		cfg.AuthStyle = oauth2.AuthStyleInHeader
	}
	if len(opts.EndpointParams) > 0 {
		cfg.EndpointParams = url.Values{}
		for k, v := range opts.EndpointParams {
			cfg.EndpointParams.Set(k, v)
		}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	tok, err := cfg.Token(ctx)
	if err != nil {
		return core.Token{}, classify(fmt.Errorf("token exchange with '%s' failed", reg.Name), err)
	}

	return core.Token{
		Value:     tok.AccessToken,
		TokenType: tok.TokenType,
		ExpiresAt: tok.Expiry,
		Provider:  reg.Name,
	}, nil
}

// tokenEndpoint resolves the issuer's token endpoint from its discovery
// document. Endpoints are stable metadata, so the result is cached for the
// exchanger's lifetime; credentials are the only thing fetched fresh.
func (e *ClientCredentialsExchanger) tokenEndpoint(ctx context.Context, discoveryURL string) (string, error) {
	e.mu.Lock()
	cached, ok := e.endpoints[discoveryURL]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	issuerRoot := strings.TrimSuffix(discoveryURL, wellKnownPath)
	ctx = oidc.ClientContext(ctx, e.httpClient)
	provider, err := oidc.NewProvider(ctx, issuerRoot)
	if err != nil {
		return "", classify(fmt.Errorf("discovering issuer '%s'", issuerRoot), err)
	}

	tokenURL := provider.Endpoint().TokenURL
	if tokenURL == "" {
		return "", fmt.Errorf("issuer '%s' discovery document has no token endpoint: %w", issuerRoot, core.ErrUpstream)
	}

	e.mu.Lock()
	e.endpoints[discoveryURL] = tokenURL
	e.mu.Unlock()
	return tokenURL, nil
}

// classify maps a transport failure onto the broker's error taxonomy.
// Deadline overruns become ErrTimeout, everything else ErrUpstream.
func classify(prefix error, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", prefix, err, core.ErrTimeout)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%s: %v: %w", prefix, err, core.ErrTimeout)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s: issuer returned status %d: %w", prefix, retrieveErr.Response.StatusCode, core.ErrUpstream)
	}
	return fmt.Errorf("%s: %v: %w", prefix, err, core.ErrUpstream)
}
