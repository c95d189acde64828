package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gatepass/gatepass/internal/api/middleware"
	"github.com/gatepass/gatepass/internal/api/presenter"
	"github.com/gatepass/gatepass/internal/buildinfo"
)

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/icanhazgatepass"
	RelayRoute       = "/mcp"

	// SubjectHeader carries the verified token subject to the target.
	SubjectHeader = "X-Gatepass-Subject"
)

// Gateway authorizes inbound requests and relays admitted ones to the
// target service unchanged. The endpoint URL stays stable across target
// redeployments; only this process needs to know where the target lives.
type Gateway struct {
	authorizer *Authorizer
	proxy      *httputil.ReverseProxy
}

func New(authorizer *Authorizer, targetURL string) (*Gateway, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("parsing target url '%s': %w", targetURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("target url '%s' must be absolute", targetURL)
	}
	return &Gateway{
		authorizer: authorizer,
		proxy:      httputil.NewSingleHostReverseProxy(target),
	}, nil
}

func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthCheckRoute, g.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, g.handleAbout)
	mux.Handle(RelayRoute, http.HandlerFunc(g.handleRelay))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (g *Gateway) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleRelay authorizes the request and forwards it verbatim. Every
// rejection looks the same to the caller; the distinguishing detail is
// only logged.
func (g *Gateway) handleRelay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	rawToken, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		logger.Warn().Msg("request rejected: missing or malformed bearer credentials")
		presenter.Error(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}

	principal, err := g.authorizer.Authorize(ctx, rawToken)
	if err != nil {
		logger.Warn().Err(err).Msg("request rejected")
		presenter.Error(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}

	logger.Debug().
		Str("sub", principal.Subject).
		Str("client_id", principal.ClientID).
		Msg("request admitted")

	// never trust an inbound subject header
	r.Header.Del(SubjectHeader)
	if principal.Subject != "" {
		r.Header.Set(SubjectHeader, principal.Subject)
	}

	g.proxy.ServeHTTP(w, r)
}

// bearerToken extracts the credentials from a Bearer Authorization header.
// The scheme match is case-insensitive (RFC 9110), but the scheme and the
// credentials must be separated; "Bearerabc" or another scheme's value is
// not a token.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
