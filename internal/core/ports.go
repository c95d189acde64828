package core

import "context"

// SecretStore manages SecretRecords. Reads are always performed under the
// caller's permission scope, never under an ambient store identity. This is
// the non-bypassable authorization gate of the token fetch path.
type SecretStore interface {
	// Read returns the secret value if the caller holds a read grant on it.
	// Returns ErrPermissionDenied when the caller lacks the grant and
	// ErrNotFound when the record does not exist.
	Read(ctx context.Context, caller WorkloadIdentity, ref SecretRef) (SecretValue, error)

	// Put creates the record if absent. An existing record is left untouched
	// and created=false is returned; this makes concurrent deploys safe.
	Put(ctx context.Context, ref SecretRef, value SecretValue) (created bool, err error)

	// Exists reports whether the record is present.
	Exists(ctx context.Context, ref SecretRef) (bool, error)

	// Delete removes the record. Absence is not an error.
	Delete(ctx context.Context, ref SecretRef) error
}

// Directory resolves provider registrations by logical name.
type Directory interface {
	// Lookup returns the registration or ErrNotFound.
	Lookup(ctx context.Context, name string) (*ProviderRegistration, error)

	// Save creates or replaces the registration under reg.Name.
	Save(ctx context.Context, reg ProviderRegistration) error

	// Delete removes the registration. Absence is not an error.
	Delete(ctx context.Context, name string) error

	List(ctx context.Context) ([]ProviderRegistration, error)
}

// TokenCache stores issued tokens keyed by (identity, provider). Only the
// broker writes to it. Concurrent writers for the same key may race; last
// write wins since every writer holds an equally fresh token.
type TokenCache interface {
	// Get returns a cached token that is still valid, if any.
	Get(ctx context.Context, identity WorkloadIdentity, provider string) (Token, bool)

	// Put stores a token for the given key, replacing any previous entry.
	Put(ctx context.Context, identity WorkloadIdentity, provider string, token Token)

	// Entries lists non-expired cache entries without token values.
	Entries(ctx context.Context) []CacheEntry
}

// Exchanger performs the client-credentials exchange with the issuer.
// Implementations must not retry on failure; retry policy belongs to the
// caller's connection factory.
type Exchanger interface {
	Exchange(ctx context.Context, reg ProviderRegistration, secret SecretValue) (Token, error)
}

// IdentityResolver derives the fine-grained workload identity from the
// execution context of a caller.
type IdentityResolver interface {
	Resolve(ctx context.Context, executionRole, agent string) (WorkloadIdentity, error)
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
