package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/gatepass/gatepass/internal/api/presenter"
	"github.com/gatepass/gatepass/internal/core"
)

// handleAdminListProviders returns all provider registrations.
func (s *Server) handleAdminListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	regs, err := s.directory.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list provider registrations")
		presenter.Error(w, r, "failed to list providers", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, regs, http.StatusOK)
}

// handleAdminRegisterProvider registers (or idempotently re-registers) a
// provider.
func (s *Server) handleAdminRegisterProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var reg core.ProviderRegistration
	if err := DecodePayload(r, &reg, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode registration payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	saved, err := s.registrar.RegisterProvider(ctx, reg)
	if err != nil {
		logger.Error().Err(err).Msg("provider registration failed")
		presenter.Err(w, r, err, "provider registration failed")
		return
	}

	presenter.JSON(w, r, saved, http.StatusCreated)
}

// handleAdminDeleteProvider removes a registration. Deleting an absent
// registration still succeeds.
func (s *Server) handleAdminDeleteProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	name := r.PathValue("name")
	if name == "" {
		presenter.Error(w, r, "missing provider name", http.StatusBadRequest)
		return
	}

	if err := s.registrar.DeleteProvider(ctx, name); err != nil {
		logger.Error().Err(err).Msg("provider deletion failed")
		presenter.Err(w, r, err, "provider deletion failed")
		return
	}

	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

type MirrorSecretPayload struct {
	// Source is the authoritative secret to copy into the broker namespace.
	Source core.SecretRef `json:"source"`
}

// handleAdminMirrorSecret copies a client secret into the broker's
// namespace. The read runs under the identity named by the execution role
// header, so a provisioner without a read grant cannot mirror the secret.
func (s *Server) handleAdminMirrorSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload MirrorSecretPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode mirror payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Source.IsZero() {
		presenter.Error(w, r, "missing source secret ref", http.StatusBadRequest)
		return
	}

	executionRole := r.Header.Get(ExecutionRoleHeader)
	if executionRole == "" {
		presenter.Error(w, r, "missing execution role", http.StatusUnauthorized)
		return
	}
	provisioner, err := s.resolver.Resolve(ctx, executionRole, r.Header.Get(AgentHeader))
	if err != nil {
		presenter.Err(w, r, err, "resolving provisioner identity failed")
		return
	}

	mirrored, err := s.registrar.MirrorSecret(ctx, provisioner, payload.Source)
	if err != nil {
		logger.Error().Err(err).Msg("secret mirroring failed")
		presenter.Err(w, r, err, "secret mirroring failed")
		return
	}

	presenter.JSON(w, r, mirrored, http.StatusCreated)
}

// handleAdminDeleteSecret removes a mirrored secret. Deleting an absent
// secret still succeeds; deleting outside the broker namespace does not.
func (s *Server) handleAdminDeleteSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	ref := core.SecretRef{
		Namespace: r.PathValue("namespace"),
		Name:      r.PathValue("name"),
	}
	if ref.IsZero() {
		presenter.Error(w, r, "missing secret ref", http.StatusBadRequest)
		return
	}

	if err := s.registrar.DeleteMirroredSecret(ctx, ref); err != nil {
		logger.Error().Err(err).Msg("secret deletion failed")
		presenter.Err(w, r, err, "secret deletion failed")
		return
	}

	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if s.audits == nil {
		presenter.Error(w, r, "audit backend is not queryable", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterWorkload := q.Get("workload")
	filterFingerprint := q.Get("fingerprint")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterFingerprint != "" || filterWorkload != "" {
		logger.Info().Msgf("applying audit log filters")
		entries, err = s.audits.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterFingerprint != "" && entry.TokenFingerprint != filterFingerprint {
				return false
			}
			if filterWorkload != "" && (entry.Identity == nil || entry.Identity.Ref != filterWorkload) {
				return false
			}
			return true
		}, limit)
	} else {
		log.Debug().Msgf("retrieving recent audit log entries")
		entries, err = s.audits.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}

// handleAdminTokens lists the live cache entries without token values.
func (s *Server) handleAdminTokens(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.cache.Entries(r.Context()), http.StatusOK)
}
