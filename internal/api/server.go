package api

import (
	"net/http"

	"github.com/gatepass/gatepass/internal/api/middleware"
	"github.com/gatepass/gatepass/internal/broker"
	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/provision"
)

type Server struct {
	tokenService *broker.TokenService
	registrar    *provision.Registrar
	resolver     core.IdentityResolver
	directory    core.Directory
	cache        core.TokenCache
	audits       core.AuditQuerier
}

func NewServer(
	tokenService *broker.TokenService,
	registrar *provision.Registrar,
	resolver core.IdentityResolver,
	directory core.Directory,
	cache core.TokenCache,
	audits core.AuditQuerier,
) *Server {
	return &Server{
		tokenService: tokenService,
		registrar:    registrar,
		resolver:     resolver,
		directory:    directory,
		cache:        cache,
		audits:       audits,
	}
}

func (s *Server) Routes(signingKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// token broker route
	mux.HandleFunc("POST "+FetchTokenRoute, s.handleFetchToken)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListProvidersRoute, s.handleAdminListProviders)
	adminMux.HandleFunc("POST "+RegisterProviderRoute, s.handleAdminRegisterProvider)
	adminMux.HandleFunc("DELETE "+DeleteProviderRoute, s.handleAdminDeleteProvider)
	adminMux.HandleFunc("POST "+MirrorSecretRoute, s.handleAdminMirrorSecret)
	adminMux.HandleFunc("DELETE "+DeleteSecretRoute, s.handleAdminDeleteSecret)
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListCachedTokensRoute, s.handleAdminTokens)
	mux.Handle(AdminParent, middleware.AdminAuth(signingKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
