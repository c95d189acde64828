package provision

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/logging"
	"github.com/gatepass/gatepass/internal/validation"
)

// Registrar establishes provider registrations and mirrors machine client
// secrets into the broker's namespace. Every operation is idempotent so
// concurrent or repeated deploys converge on the same state; "already
// exists" is treated as success throughout.
type Registrar struct {
	directory core.Directory
	secrets   core.SecretStore

	// brokerNamespace is where mirrored secrets are copied to.
	brokerNamespace string

	logger logging.InternalLogger
}

func NewRegistrar(directory core.Directory, secrets core.SecretStore, brokerNamespace string, logger logging.InternalLogger) *Registrar {
	return &Registrar{
		directory:       directory,
		secrets:         secrets,
		brokerNamespace: brokerNamespace,
		logger:          logger,
	}
}

// RegisterProvider creates the registration, or verifies and returns the
// existing one. Re-registering with different parameters updates the
// registration in place; re-registering with identical parameters is a
// no-op.
func (r *Registrar) RegisterProvider(ctx context.Context, reg core.ProviderRegistration) (*core.ProviderRegistration, error) {
	if err := validation.ValidateRegistration(reg); err != nil {
		return nil, fmt.Errorf("invalid registration: %w", err)
	}

	existing, err := r.directory.Lookup(ctx, reg.Name)
	if err == nil {
		if reflect.DeepEqual(*existing, reg) {
			r.logger.Info("provider '%s' already registered, nothing to do", reg.Name)
			return existing, nil
		}
		r.logger.Info("provider '%s' already registered with different parameters, updating", reg.Name)
	}

	if err := r.directory.Save(ctx, reg); err != nil {
		return nil, fmt.Errorf("saving registration '%s': %w", reg.Name, err)
	}
	r.logger.Info("registered provider '%s' (issuer: %s, client: %s)", reg.Name, reg.DiscoveryURL, reg.ClientID)
	return &reg, nil
}

// MirrorSecret copies the client_id/client_secret fields of the source
// record into the broker's namespace under the same name. The read runs
// under the provisioner's own identity; the mirror is skipped when the
// target already exists.
func (r *Registrar) MirrorSecret(ctx context.Context, provisioner core.WorkloadIdentity, source core.SecretRef) (core.SecretRef, error) {
	mirrored := core.SecretRef{Namespace: r.brokerNamespace, Name: source.Name}

	exists, err := r.secrets.Exists(ctx, mirrored)
	if err != nil {
		return core.SecretRef{}, fmt.Errorf("checking mirrored secret '%s': %w", mirrored, err)
	}
	if exists {
		r.logger.Info("mirrored secret '%s' already present, nothing to do", mirrored)
		return mirrored, nil
	}

	value, err := r.secrets.Read(ctx, provisioner, source)
	if err != nil {
		return core.SecretRef{}, fmt.Errorf("reading source secret '%s': %w", source, err)
	}

	// only the credential pair is mirrored, never extra fields
	created, err := r.secrets.Put(ctx, mirrored, core.SecretValue{
		ClientID:     value.ClientID,
		ClientSecret: value.ClientSecret,
	})
	if err != nil {
		return core.SecretRef{}, fmt.Errorf("writing mirrored secret '%s': %w", mirrored, err)
	}
	if !created {
		// a concurrent deploy won the race, which is fine
		r.logger.Warn("mirrored secret '%s' was created concurrently", mirrored)
	} else {
		r.logger.Info("mirrored secret '%s' -> '%s'", source, mirrored)
	}
	return mirrored, nil
}

// DeleteProvider removes the registration. Absence is not an error.
func (r *Registrar) DeleteProvider(ctx context.Context, name string) error {
	if err := r.directory.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting registration '%s': %w", name, err)
	}
	r.logger.Info("deleted provider registration '%s'", name)
	return nil
}

// DeleteMirroredSecret removes a mirrored secret. Absence is not an error.
// Refuses to delete outside the broker's namespace so a teardown cannot
// touch the authoritative record.
func (r *Registrar) DeleteMirroredSecret(ctx context.Context, ref core.SecretRef) error {
	if ref.Namespace != r.brokerNamespace {
		return fmt.Errorf("refusing to delete secret '%s' outside namespace '%s'", ref, r.brokerNamespace)
	}
	if err := r.secrets.Delete(ctx, ref); err != nil {
		return fmt.Errorf("deleting mirrored secret '%s': %w", ref, err)
	}
	r.logger.Info("deleted mirrored secret '%s'", ref)
	return nil
}
