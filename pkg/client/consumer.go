package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenProvider returns a bearer token for an outbound connection. It is
// invoked when the connection is made, never at construction time, so a
// consumer can be built before the broker knows about the provider.
type TokenProvider func(ctx context.Context) (string, error)

// TokenProvider returns a provider backed by this broker client.
func (c *Client) TokenProvider(opts FetchTokenOptions) TokenProvider {
	return func(ctx context.Context) (string, error) {
		resp, _, err := c.FetchToken(ctx, opts)
		if err != nil {
			return "", fmt.Errorf("fetching token: %w", err)
		}
		return resp.Token.Value, nil
	}
}

// Connector calls a gateway-protected endpoint. The endpoint URL is fixed
// at construction and stays stable across target redeployments; the token
// is fetched per invocation.
type Connector struct {
	endpoint   string
	provider   TokenProvider
	httpClient *http.Client
}

type ConnectorOption func(*Connector)

func WithConnectorHTTPClient(hc *http.Client) ConnectorOption {
	return func(c *Connector) {
		c.httpClient = hc
	}
}

func NewConnector(endpoint string, provider TokenProvider, opts ...ConnectorOption) *Connector {
	c := &Connector{
		endpoint: endpoint,
		provider: provider,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke posts the payload to the endpoint with a freshly provided token.
// A failed token fetch surfaces before any bytes reach the endpoint.
func (c *Connector) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	token, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
