package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "token.fetch", "provider.register")
	Action string `json:"action"`

	// Identity identifies the workload that made the request
	Identity *WorkloadIdentity `json:"identity,omitempty"`

	// Provider that was targeted
	Provider string `json:"provider,omitempty"`

	// CacheHit is true when a token fetch was served from cache.
	CacheHit bool `json:"cache_hit,omitempty"`

	// Decision details
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// TokenFingerprint of the returned token, if any.
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Metadata contains extra details (secret ref, scopes, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditQuerier is implemented by auditors that can be queried back, like
// the in-memory auditor. File-backed auditors are write-only.
type AuditQuerier interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
