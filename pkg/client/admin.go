package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gatepass/gatepass/internal/api"
	"github.com/gatepass/gatepass/internal/core"
)

// ListProviders retrieves all provider registrations.
func (c *Client) ListProviders(ctx context.Context) ([]core.ProviderRegistration, error) {
	var resp []core.ProviderRegistration
	_, err := c.get(ctx, c.url().
		setPath(api.ListProvidersRoute).
		build(), &resp)
	return resp, err
}

// RegisterProvider creates or idempotently updates a registration.
func (c *Client) RegisterProvider(ctx context.Context, reg core.ProviderRegistration) (*core.ProviderRegistration, error) {
	var resp core.ProviderRegistration
	_, err := c.post(ctx, c.url().
		setPath(api.RegisterProviderRoute).
		build(), reg, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteProvider removes a registration; deleting an absent registration
// succeeds.
func (c *Client) DeleteProvider(ctx context.Context, name string) error {
	path := strings.Replace(api.DeleteProviderRoute, "{name}", name, 1)
	_, err := c.delete(ctx, c.url().
		setPath(path).
		build())
	return err
}

// MirrorSecret asks the broker to copy the source secret into its own
// namespace, reading it as the given provisioner workload.
func (c *Client) MirrorSecret(ctx context.Context, executionRole, agent string, source core.SecretRef) (*core.SecretRef, error) {
	marshalled, err := json.Marshal(api.MirrorSecretPayload{Source: source})
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.MirrorSecretRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.ExecutionRoleHeader, executionRole)
	if agent != "" {
		req.Header.Set(api.AgentHeader, agent)
	}

	var mirrored core.SecretRef
	if _, err := c.do(req, &mirrored); err != nil {
		return nil, err
	}
	return &mirrored, nil
}

// DeleteMirroredSecret removes a mirrored secret from the broker
// namespace; deleting an absent secret succeeds.
func (c *Client) DeleteMirroredSecret(ctx context.Context, ref core.SecretRef) error {
	path := strings.Replace(api.DeleteSecretRoute, "{namespace}", ref.Namespace, 1)
	path = strings.Replace(path, "{name}", ref.Name, 1)
	_, err := c.delete(ctx, c.url().
		setPath(path).
		build())
	return err
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, limit uint) ([]core.AuditEntry, error) {
	var resp []core.AuditEntry
	_, err := c.get(ctx, c.url().
		setPath(api.ListAuditsRoute).
		addQueryParam("limit", limit).
		build(), &resp)
	return resp, err
}

// ListCachedTokens retrieves the live token cache entries, without token
// values.
func (c *Client) ListCachedTokens(ctx context.Context) ([]core.CacheEntry, error) {
	var resp []core.CacheEntry
	_, err := c.get(ctx, c.url().
		setPath(api.ListCachedTokensRoute).
		build(), &resp)
	return resp, err
}
