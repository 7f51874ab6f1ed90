// Package engine is a partial client for the libpod REST API.
//
// Each operation expects exactly one status code; anything else is returned
// as an *APIError carrying the raw response body. Nothing is retried here.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/izavyalov-dev/jarforge/engine/transport"
)

// DefaultAPIPrefix is the versioned path prefix for libpod endpoints.
const DefaultAPIPrefix = "/v4.0.0/libpod"

// Transport sends buffered requests to the engine.
type Transport interface {
	Get(ctx context.Context, path string) (*transport.Response, error)
	Post(ctx context.Context, path string, body []byte, contentType string) (*transport.Response, error)
	PostJSON(ctx context.Context, path string, payload any) (*transport.Response, error)
	Delete(ctx context.Context, path string) (*transport.Response, error)
}

// Client maps engine operations onto REST calls.
type Client struct {
	transport Transport
	prefix    string
}

func NewClient(t Transport, apiPrefix string) *Client {
	if apiPrefix == "" {
		apiPrefix = DefaultAPIPrefix
	}
	return &Client{
		transport: t,
		prefix:    "/" + strings.Trim(apiPrefix, "/"),
	}
}

func (c *Client) path(p string, query url.Values) string {
	full := c.prefix + p
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func expectStatus(op string, resp *transport.Response, want int) error {
	if resp.StatusCode != want {
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("expected status %d", want),
			Body:       string(resp.Body),
		}
	}
	return nil
}

func decodeBody(op string, resp *transport.Response, out any) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Reason:     "invalid json: " + err.Error(),
			Body:       string(resp.Body),
		}
	}
	return nil
}

func contractError(op string, resp *transport.Response, reason string) error {
	return &APIError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Reason:     reason,
		Body:       string(resp.Body),
	}
}

func encodeFilters(filters map[string][]string) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ping reads the engine's version metadata from the ping response headers.
func (c *Client) Ping(ctx context.Context) (PingInfo, error) {
	const op = "ping"
	resp, err := c.transport.Get(ctx, c.path("/_ping", nil))
	if err != nil {
		return PingInfo{}, fmt.Errorf("engine %s: %w", op, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return PingInfo{}, err
	}
	info := PingInfo{
		APIVersion:       resp.Header.Get("API-Version"),
		LibpodAPIVersion: resp.Header.Get("Libpod-API-Version"),
		BuildahVersion:   resp.Header.Get("Libpod-Buildah-Version"),
		Server:           resp.Header.Get("Server"),
	}
	if info.APIVersion == "" && info.LibpodAPIVersion == "" {
		return PingInfo{}, contractError(op, resp, "missing version headers")
	}
	return info, nil
}
