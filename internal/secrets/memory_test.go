package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/gatepass/gatepass/internal/core"
)

func TestInMemoryStore_ReadGrants(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ref := core.SecretRef{Namespace: "cognito", Name: "acme-client"}
	value := core.SecretValue{ClientID: "abc123", ClientSecret: "s3cr3t"}

	if created, err := store.Put(ctx, ref, value); err != nil || !created {
		t.Fatalf("Put() = %v, %v; want created", created, err)
	}
	if err := store.Allow(ref, "role/agent-runtime"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	tests := []struct {
		name    string
		caller  core.WorkloadIdentity
		ref     core.SecretRef
		wantErr error
	}{
		{
			name:   "Granted Via Execution Role",
			caller: core.WorkloadIdentity{Ref: "role/agent-runtime#workload/w1", ExecutionRole: "role/agent-runtime"},
			ref:    ref,
		},
		{
			name:    "Denied Without Grant",
			caller:  core.WorkloadIdentity{Ref: "role/other#workload/w2", ExecutionRole: "role/other"},
			ref:     ref,
			wantErr: core.ErrPermissionDenied,
		},
		{
			name:    "Missing Record",
			caller:  core.WorkloadIdentity{Ref: "role/agent-runtime#workload/w1", ExecutionRole: "role/agent-runtime"},
			ref:     core.SecretRef{Namespace: "cognito", Name: "nope"},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Read(ctx, tt.caller, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != value {
				t.Errorf("Read() = %+v, want %+v", got, value)
			}
		})
	}
}

func TestInMemoryStore_IdempotentPutDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ref := core.SecretRef{Namespace: "gatepass", Name: "acme-client"}
	first := core.SecretValue{ClientID: "abc123", ClientSecret: "one"}
	second := core.SecretValue{ClientID: "abc123", ClientSecret: "two"}

	if created, _ := store.Put(ctx, ref, first); !created {
		t.Fatal("first Put() should create")
	}
	if created, _ := store.Put(ctx, ref, second); created {
		t.Fatal("second Put() should be a no-op")
	}
	if err := store.Allow(ref, "*"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	got, err := store.Read(ctx, core.WorkloadIdentity{Ref: "anyone"}, ref)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != first {
		t.Errorf("existing record was overwritten: got %+v, want %+v", got, first)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, ref); err != nil {
		t.Errorf("Delete() of absent record should succeed, got %v", err)
	}
	if ok, _ := store.Exists(ctx, ref); ok {
		t.Error("record still exists after delete")
	}
}
