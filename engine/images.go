package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

type progressMessage struct {
	Stream string   `json:"stream,omitempty"`
	Error  string   `json:"error,omitempty"`
	ID     *string  `json:"id,omitempty"`
	Images []string `json:"images,omitempty"`
}

// decodeProgress reads the concatenated JSON objects the engine streams for
// pulls and builds.
func decodeProgress(op string, body []byte) ([]progressMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var messages []progressMessage
	for {
		var msg progressMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode %s progress: %w", op, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// PullImage pulls reference according to policy and returns the image id.
func (c *Client) PullImage(ctx context.Context, reference string, policy PullPolicy) (string, error) {
	const op = "pull image"
	if !policy.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
	query := url.Values{}
	query.Set("reference", reference)
	query.Set("policy", string(policy))
	query.Set("quiet", "true")

	resp, err := c.transport.Post(ctx, c.path("/images/pull", query), nil, "")
	if err != nil {
		return "", fmt.Errorf("engine %s %s: %w", op, reference, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return "", err
	}
	messages, err := decodeProgress(op, resp.Body)
	if err != nil {
		return "", contractError(op, resp, err.Error())
	}

	var id *string
	for _, msg := range messages {
		if msg.Error != "" {
			return "", contractError(op, resp, "pull failed: "+msg.Error)
		}
		if msg.ID != nil {
			id = msg.ID
		}
	}
	if id == nil || *id == "" {
		return "", contractError(op, resp, "missing id field")
	}
	return *id, nil
}

// BuildImage sends the containerfile's directory as the build context and
// returns the id of the built image.
func (c *Client) BuildImage(ctx context.Context, containerfilePath, nameAndTag string, labels map[string]string) (string, error) {
	const op = "build image"
	contextDir := filepath.Dir(containerfilePath)
	archive, err := TarDirectory(contextDir)
	if err != nil {
		return "", fmt.Errorf("engine %s: archive %s: %w", op, contextDir, err)
	}

	query := url.Values{}
	query.Set("dockerfile", filepath.Base(containerfilePath))
	query.Set("t", nameAndTag)
	query.Set("rm", "true")
	if len(labels) > 0 {
		encoded, err := json.Marshal(labels)
		if err != nil {
			return "", fmt.Errorf("engine %s: encode labels: %w", op, err)
		}
		query.Set("labels", string(encoded))
	}

	resp, err := c.transport.Post(ctx, c.path("/build", query), archive, "application/x-tar")
	if err != nil {
		return "", fmt.Errorf("engine %s %s: %w", op, nameAndTag, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return "", err
	}
	messages, err := decodeProgress(op, resp.Body)
	if err != nil {
		return "", contractError(op, resp, err.Error())
	}
	if len(messages) == 0 {
		return "", contractError(op, resp, "empty build output")
	}
	for _, msg := range messages {
		if msg.Error != "" {
			return "", contractError(op, resp, "build failed: "+msg.Error)
		}
	}

	id := strings.TrimSpace(messages[len(messages)-1].Stream)
	if id == "" {
		return "", contractError(op, resp, "missing image id in final stream line")
	}
	return id, nil
}
