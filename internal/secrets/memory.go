package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/gatepass/gatepass/internal/core"
)

var _ core.SecretStore = (*InMemoryStore)(nil)

// InMemoryStore keeps SecretRecords in memory with per-record read grants.
// A read always runs under the caller's grants; there is no store-level
// identity that could be used to bypass them.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	value   core.SecretValue
	readers map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*record),
	}
}

func (s *InMemoryStore) Read(_ context.Context, caller core.WorkloadIdentity, ref core.SecretRef) (core.SecretValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[ref.String()]
	if !ok {
		return core.SecretValue{}, fmt.Errorf("secret '%s': %w", ref, core.ErrNotFound)
	}
	if !allowed(rec.readers, caller) {
		return core.SecretValue{}, fmt.Errorf("caller '%s' may not read secret '%s': %w",
			caller.Ref, ref, core.ErrPermissionDenied)
	}
	return rec.value, nil
}

func (s *InMemoryStore) Put(_ context.Context, ref core.SecretRef, value core.SecretValue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check-then-act inside the lock; an existing record wins so that
	// concurrent deploys cannot corrupt each other
	if _, ok := s.records[ref.String()]; ok {
		return false, nil
	}
	s.records[ref.String()] = &record{
		value:   value,
		readers: make(map[string]struct{}),
	}
	return true, nil
}

func (s *InMemoryStore) Exists(_ context.Context, ref core.SecretRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[ref.String()]
	return ok, nil
}

func (s *InMemoryStore) Delete(_ context.Context, ref core.SecretRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// absence is not an error
	delete(s.records, ref.String())
	return nil
}

// Allow grants the given reader (an execution role or a workload identity
// ref) read access on the record. Granting on a missing record is an error.
func (s *InMemoryStore) Allow(ref core.SecretRef, reader string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref.String()]
	if !ok {
		return fmt.Errorf("secret '%s': %w", ref, core.ErrNotFound)
	}
	rec.readers[reader] = struct{}{}
	return nil
}

func allowed(readers map[string]struct{}, caller core.WorkloadIdentity) bool {
	if _, ok := readers["*"]; ok {
		return true
	}
	if _, ok := readers[caller.Ref]; ok {
		return true
	}
	if _, ok := readers[caller.ExecutionRole]; ok {
		return true
	}
	return false
}
