package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
)

// requestHost is a placeholder; the dialer ignores the address and always
// connects to the configured socket.
const requestHost = "http://engine"

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the media type declared by the response.
func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// TransportError reports a connection-level failure talking to the socket.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnixClient issues HTTP/1.1 requests over a Unix domain socket. Every request
// uses a fresh connection.
type UnixClient struct {
	socketPath string
	client     *http.Client
}

func NewUnixClient(socketPath string) *UnixClient {
	dialer := &net.Dialer{}
	return &UnixClient{
		socketPath: socketPath,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
				DisableKeepAlives:  true,
				DisableCompression: true,
			},
		},
	}
}

// SocketPath returns the socket the client dials.
func (c *UnixClient) SocketPath() string {
	return c.socketPath
}

func (c *UnixClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// Post sends body as-is. A nil body sends a zero-length request.
func (c *UnixClient) Post(ctx context.Context, path string, body []byte, contentType string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, contentType)
}

// PostJSON serializes payload and posts it as application/json.
func (c *UnixClient) PostJSON(ctx context.Context, path string, payload any) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, data, "application/json")
}

func (c *UnixClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, "")
}

func (c *UnixClient) do(ctx context.Context, method, path string, body []byte, contentType string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestHost+path, reader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Close = true

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
