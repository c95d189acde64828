package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gatepass/gatepass/internal/api/presenter"
	"github.com/gatepass/gatepass/internal/broker"
)

type FetchPayload struct {
	// Provider is the logical provider name to fetch a token for.
	Provider string `json:"provider"`

	// Agent optionally names the agent; the X-Agent header takes
	// precedence when both are set.
	Agent string `json:"agent,omitempty"`
}

// handleFetchToken processes token fetch requests from workloads.
func (s *Server) handleFetchToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload FetchPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode fetch request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Provider == "" {
		presenter.Error(w, r, "missing provider", http.StatusBadRequest)
		return
	}

	executionRole := r.Header.Get(ExecutionRoleHeader)
	if executionRole == "" {
		logger.Warn().Msgf("missing %s header", ExecutionRoleHeader)
		presenter.Error(w, r, "missing execution role", http.StatusUnauthorized)
		return
	}

	agent := r.Header.Get(AgentHeader)
	if agent == "" {
		agent = payload.Agent
	}

	result, err := s.tokenService.FetchToken(ctx, broker.FetchRequest{
		ExecutionRole: executionRole,
		Agent:         agent,
		Provider:      payload.Provider,
	})
	if err != nil {
		logger.Error().Err(err).Msg("token fetch failed")
		presenter.Err(w, r, err, "token fetch failed")
		return
	}

	logger.Info().
		Str("provider", result.Token.Provider).
		Bool("cache_hit", result.CacheHit).
		Msg("token fetched successfully")

	presenter.JSON(w, r, result, http.StatusOK)
}
