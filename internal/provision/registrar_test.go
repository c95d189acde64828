package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/secrets"
)

type testLogger struct{}

func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

func testRegistration() core.ProviderRegistration {
	return core.ProviderRegistration{
		Name:         "acme-gateway-auth",
		DiscoveryURL: "https://idp.example/.well-known/openid-configuration",
		ClientID:     "abc123",
		SecretRef:    core.SecretRef{Namespace: "gatepass", Name: "acme-client"},
		GrantType:    core.GrantClientCredentials,
		Scopes:       []string{"read", "write"},
	}
}

func TestRegistrar_RegisterProviderIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := NewInMemoryDirectory()
	store := secrets.NewInMemoryStore()
	reg := NewRegistrar(dir, store, "gatepass", testLogger{})

	first, err := reg.RegisterProvider(ctx, testRegistration())
	if err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}

	second, err := reg.RegisterProvider(ctx, testRegistration())
	if err != nil {
		t.Fatalf("second RegisterProvider() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second registration differs (-first +second):\n%s", diff)
	}

	all, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List() returned %d registrations, want 1", len(all))
	}
}

func TestRegistrar_RegisterProviderUpdates(t *testing.T) {
	ctx := context.Background()
	dir := NewInMemoryDirectory()
	reg := NewRegistrar(dir, secrets.NewInMemoryStore(), "gatepass", testLogger{})

	if _, err := reg.RegisterProvider(ctx, testRegistration()); err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}

	changed := testRegistration()
	changed.Scopes = []string{"read"}
	if _, err := reg.RegisterProvider(ctx, changed); err != nil {
		t.Fatalf("update RegisterProvider() error = %v", err)
	}

	got, err := dir.Lookup(ctx, "acme-gateway-auth")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if diff := cmp.Diff(changed, *got); diff != "" {
		t.Errorf("registration not updated (-want +got):\n%s", diff)
	}
}

func TestRegistrar_RegisterProviderRejectsBadGrant(t *testing.T) {
	reg := NewRegistrar(NewInMemoryDirectory(), secrets.NewInMemoryStore(), "gatepass", testLogger{})

	bad := testRegistration()
	bad.GrantType = "authorization_code"
	if _, err := reg.RegisterProvider(context.Background(), bad); err == nil {
		t.Fatal("RegisterProvider() accepted a non client-credentials grant")
	}
}

func TestRegistrar_MirrorSecret(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewInMemoryStore()
	reg := NewRegistrar(NewInMemoryDirectory(), store, "gatepass", testLogger{})

	provisioner := core.WorkloadIdentity{Ref: "role/provisioner", ExecutionRole: "role/provisioner"}
	source := core.SecretRef{Namespace: "cognito", Name: "acme-client"}
	value := core.SecretValue{ClientID: "abc123", ClientSecret: "s3cr3t"}

	if _, err := store.Put(ctx, source, value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Allow(source, provisioner.Ref); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	mirrored, err := reg.MirrorSecret(ctx, provisioner, source)
	if err != nil {
		t.Fatalf("MirrorSecret() error = %v", err)
	}
	want := core.SecretRef{Namespace: "gatepass", Name: "acme-client"}
	if mirrored != want {
		t.Fatalf("MirrorSecret() = %v, want %v", mirrored, want)
	}

	// second mirror is a no-op, not an error
	again, err := reg.MirrorSecret(ctx, provisioner, source)
	if err != nil || again != want {
		t.Fatalf("second MirrorSecret() = %v, %v; want %v, nil", again, err, want)
	}

	if err := store.Allow(mirrored, provisioner.Ref); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	got, err := store.Read(ctx, provisioner, mirrored)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != value {
		t.Errorf("mirrored value = %+v, want %+v", got, value)
	}
}

func TestRegistrar_MirrorSecretRequiresReadGrant(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewInMemoryStore()
	reg := NewRegistrar(NewInMemoryDirectory(), store, "gatepass", testLogger{})

	source := core.SecretRef{Namespace: "cognito", Name: "acme-client"}
	if _, err := store.Put(ctx, source, core.SecretValue{ClientID: "abc123"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	nobody := core.WorkloadIdentity{Ref: "role/nobody", ExecutionRole: "role/nobody"}
	if _, err := reg.MirrorSecret(ctx, nobody, source); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("MirrorSecret() error = %v, want ErrPermissionDenied", err)
	}
}

func TestRegistrar_TeardownIdempotent(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewInMemoryStore()
	reg := NewRegistrar(NewInMemoryDirectory(), store, "gatepass", testLogger{})

	// deleting things that never existed must succeed
	if err := reg.DeleteProvider(ctx, "ghost"); err != nil {
		t.Errorf("DeleteProvider() of absent registration = %v, want nil", err)
	}
	if err := reg.DeleteMirroredSecret(ctx, core.SecretRef{Namespace: "gatepass", Name: "ghost"}); err != nil {
		t.Errorf("DeleteMirroredSecret() of absent secret = %v, want nil", err)
	}

	// but deleting outside the broker namespace is refused
	if err := reg.DeleteMirroredSecret(ctx, core.SecretRef{Namespace: "cognito", Name: "acme-client"}); err == nil {
		t.Error("DeleteMirroredSecret() outside broker namespace should fail")
	}
}
