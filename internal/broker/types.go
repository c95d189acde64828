package broker

import "github.com/gatepass/gatepass/internal/core"

type FetchRequest struct {
	// ExecutionRole is the coarse role the caller runs under.
	ExecutionRole string

	// Agent is the caller's agent name, used to derive the fine-grained
	// workload identity. Optional; a default is applied.
	Agent string

	// Provider is the logical provider name to fetch a token for.
	Provider string
}

type FetchResponse struct {
	// Token is the issued (or cached) bearer token.
	Token core.Token `json:"token"`

	// Identity is the resolved workload identity the token is scoped to.
	Identity core.WorkloadIdentity `json:"identity"`

	// CacheHit is true when no issuer exchange was performed.
	CacheHit bool `json:"cache_hit"`
}
