package builders

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
)

const userAgent = "jarforge"

// UpstreamError captures non-2xx responses from an upstream metadata or
// download service.
type UpstreamError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: url=%s status=%d message=%s", e.URL, e.StatusCode, e.Message)
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{URL: url, StatusCode: resp.StatusCode, Message: string(body)}
	}
	return resp, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	resp, err := get(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// download streams url into a temporary file in dir, verifying the digest
// computed by sum against wantHex. It returns the temporary file path.
func download(ctx context.Context, client *http.Client, url, dir string, sum hash.Hash, wantHex string) (string, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", err
	}
	keep := false
	defer func() {
		_ = tmp.Close()
		if !keep {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(io.MultiWriter(tmp, sum), resp.Body); err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if got := hex.EncodeToString(sum.Sum(nil)); wantHex != "" && got != wantHex {
		return "", fmt.Errorf("download %s: checksum mismatch: got %s, want %s", url, got, wantHex)
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	keep = true
	return tmp.Name(), nil
}
