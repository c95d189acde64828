package core

import "errors"

// Error taxonomy of the token fetch and gateway paths. Callers match with
// errors.Is; the HTTP layer maps these to status codes in one place.
var (
	// ErrNotFound indicates an unknown provider name or missing record.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the caller lacks a read grant on the
	// backing secret. It is never silently converted into a read under the
	// broker's own identity.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUpstream indicates the issuer or key service was unreachable or
	// returned a non-2xx response. Not retried at this layer.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout indicates a caller-supplied deadline was exceeded on a
	// network-bound step.
	ErrTimeout = errors.New("timeout")

	// ErrAuthRejected indicates the gateway refused a bearer token. The
	// reason is deliberately not distinguished for callers.
	ErrAuthRejected = errors.New("authorization rejected")
)
