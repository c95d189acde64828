package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gatepass/gatepass/internal/api/middleware"
	"github.com/gatepass/gatepass/internal/audit"
	"github.com/gatepass/gatepass/internal/core"
)

// TokenService hands out bearer tokens for registered providers, caching
// them per (workload identity, provider). The secret backing a provider is
// always read under the caller's identity; a caller without a read grant
// gets a permission error before any issuer traffic happens.
type TokenService struct {
	resolver  core.IdentityResolver
	directory core.Directory
	secrets   core.SecretStore
	cache     core.TokenCache
	exchanger core.Exchanger
	auditor   core.Auditor

	// defaultTTL is applied when the issuer does not report an expiry.
	defaultTTL time.Duration

	now func() time.Time
}

func NewTokenService(
	resolver core.IdentityResolver,
	directory core.Directory,
	secrets core.SecretStore,
	cache core.TokenCache,
	exchanger core.Exchanger,
	auditor core.Auditor,
	defaultTTL time.Duration,
) *TokenService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if defaultTTL == 0 {
		defaultTTL = time.Hour
	}
	return &TokenService{
		resolver:   resolver,
		directory:  directory,
		secrets:    secrets,
		cache:      cache,
		exchanger:  exchanger,
		auditor:    auditor,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (s *TokenService) FetchToken(ctx context.Context, req FetchRequest) (*FetchResponse, error) {
	logger := log.Ctx(ctx)
	reqID := middleware.CorrelationCtx(ctx)

	auditEntry := core.AuditEntry{
		ID:       reqID,
		Time:     s.now(),
		Action:   "token.fetch",
		Provider: req.Provider,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for token fetch")
		}
	}()

	// resolve the fine-grained identity first, everything downstream is
	// scoped by it
	identity, err := s.resolver.Resolve(ctx, req.ExecutionRole, req.Agent)
	if err != nil {
		auditEntry.Error = "identity resolution failed"
		return nil, fmt.Errorf("resolving workload identity: %w", err)
	}
	auditEntry.Identity = &identity

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("workload", identity.Ref).Str("provider", req.Provider)
	})

	if tok, ok := s.cache.Get(ctx, identity, req.Provider); ok {
		logger.Debug().Msg("token served from cache")
		auditEntry.Success = true
		auditEntry.CacheHit = true
		auditEntry.TokenFingerprint = tok.Fingerprint
		return &FetchResponse{Token: tok, Identity: identity, CacheHit: true}, nil
	}

	reg, err := s.directory.Lookup(ctx, req.Provider)
	if err != nil {
		auditEntry.Error = "unknown provider"
		return nil, fmt.Errorf("looking up provider '%s': %w", req.Provider, err)
	}

	// the caller must hold its own read grant on the secret; there is no
	// fallback to a broker-owned identity here
	secret, err := s.secrets.Read(ctx, identity, reg.SecretRef)
	if err != nil {
		auditEntry.Error = "secret read failed"
		auditEntry.Metadata = map[string]any{"secret_ref": reg.SecretRef.String()}
		return nil, fmt.Errorf("reading secret for provider '%s': %w", req.Provider, err)
	}

	tok, err := s.exchanger.Exchange(ctx, *reg, secret)
	if err != nil {
		auditEntry.Error = "exchange failed"
		return nil, fmt.Errorf("exchanging credentials for provider '%s': %w", req.Provider, err)
	}

	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = s.now().Add(s.defaultTTL)
	}
	tok.Provider = reg.Name
	tok.Fingerprint = audit.CalculateFingerprint(audit.OAuth2FingerprintType, tok.Value)

	s.cache.Put(ctx, identity, req.Provider, tok)

	logger.Info().Time("expires_at", tok.ExpiresAt).Msg("token issued")
	auditEntry.Success = true
	auditEntry.TokenFingerprint = tok.Fingerprint
	auditEntry.Metadata = map[string]any{"scopes": reg.Scopes}

	return &FetchResponse{Token: tok, Identity: identity, CacheHit: false}, nil
}

// SetNowFunc overrides the clock, for tests.
func (s *TokenService) SetNowFunc(now func() time.Time) {
	s.now = now
}
