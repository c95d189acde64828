package provision

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gatepass/gatepass/internal/core"
)

var _ core.Directory = (*InMemoryDirectory)(nil)

// InMemoryDirectory holds provider registrations keyed by logical name.
type InMemoryDirectory struct {
	mu   sync.RWMutex
	regs map[string]core.ProviderRegistration
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		regs: make(map[string]core.ProviderRegistration),
	}
}

func (d *InMemoryDirectory) Lookup(_ context.Context, name string) (*core.ProviderRegistration, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.regs[name]
	if !ok {
		return nil, fmt.Errorf("provider '%s': %w", name, core.ErrNotFound)
	}
	return &reg, nil
}

func (d *InMemoryDirectory) Save(_ context.Context, reg core.ProviderRegistration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[reg.Name] = reg
	return nil
}

func (d *InMemoryDirectory) Delete(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// absence is not an error
	delete(d.regs, name)
	return nil
}

func (d *InMemoryDirectory) List(_ context.Context) ([]core.ProviderRegistration, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	regs := make([]core.ProviderRegistration, 0, len(d.regs))
	for _, reg := range d.regs {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Name < regs[j].Name
	})
	return regs, nil
}
