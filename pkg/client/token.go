package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gatepass/gatepass/internal/api"
	"github.com/gatepass/gatepass/internal/broker"
)

// FetchTokenOptions identifies the calling workload and the target
// provider.
type FetchTokenOptions struct {
	// ExecutionRole is required; the broker derives the workload identity
	// from it.
	ExecutionRole string

	// Agent optionally distinguishes workloads sharing an execution role.
	Agent string

	// Provider is the logical provider name to fetch a token for.
	Provider string
}

// FetchToken requests a token from the broker. The broker decides whether
// to serve from cache or perform a fresh exchange.
func (c *Client) FetchToken(ctx context.Context, opts FetchTokenOptions) (*broker.FetchResponse, string, error) {
	payload := api.FetchPayload{
		Provider: opts.Provider,
	}
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling payload: %w", err)
	}

	// we do this request manually because the identity headers differ per
	// call, unlike the session token our helpers inject
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.FetchTokenRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.ExecutionRoleHeader, opts.ExecutionRole)
	if opts.Agent != "" {
		req.Header.Set(api.AgentHeader, opts.Agent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, correlationFromResponse(resp), parseErrorResponse(resp)
	}

	var result broker.FetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("decoding response: %w", err)
	}

	return &result, correlationFromResponse(resp), nil
}
