package engine

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const logsContentType = "application/octet-stream"

// ListContainers lists containers; all=false restricts the result to running ones.
func (c *Client) ListContainers(ctx context.Context, all bool, filters map[string][]string, limit int) ([]ContainerSummary, error) {
	const op = "list containers"
	query := url.Values{}
	query.Set("all", strconv.FormatBool(all))
	if len(filters) > 0 {
		encoded, err := encodeFilters(filters)
		if err != nil {
			return nil, fmt.Errorf("engine %s: encode filters: %w", op, err)
		}
		query.Set("filters", encoded)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	resp, err := c.transport.Get(ctx, c.path("/containers/json", query))
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", op, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(resp.Body)), "[") {
		return nil, contractError(op, resp, "expected json array")
	}
	var containers []ContainerSummary
	if err := decodeBody(op, resp, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// CreateContainer creates a container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	const op = "create container"
	resp, err := c.transport.PostJSON(ctx, c.path("/containers/create", nil), spec)
	if err != nil {
		return "", fmt.Errorf("engine %s: %w", op, err)
	}
	if err := expectStatus(op, resp, http.StatusCreated); err != nil {
		return "", err
	}
	var created struct {
		ID       string   `json:"Id"`
		Warnings []string `json:"Warnings"`
	}
	if err := decodeBody(op, resp, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", contractError(op, resp, "missing Id field")
	}
	return created.ID, nil
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	const op = "start container"
	resp, err := c.transport.Post(ctx, c.path("/containers/"+url.PathEscape(id)+"/start", nil), nil, "")
	if err != nil {
		return fmt.Errorf("engine %s %s: %w", op, id, err)
	}
	return expectStatus(op, resp, http.StatusNoContent)
}

// WaitContainer blocks until the container reaches one of conditions and
// returns its exit code. The call lasts as long as the container runs.
func (c *Client) WaitContainer(ctx context.Context, id string, conditions ...string) (int, error) {
	const op = "wait container"
	query := url.Values{}
	for _, condition := range conditions {
		query.Add("condition", condition)
	}
	resp, err := c.transport.Post(ctx, c.path("/containers/"+url.PathEscape(id)+"/wait", query), nil, "")
	if err != nil {
		return 0, fmt.Errorf("engine %s %s: %w", op, id, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(resp.Body)))
	if err != nil {
		return 0, contractError(op, resp, "exit code is not an integer")
	}
	return code, nil
}

// DeleteContainer removes a container. force kills it first; ignoreMissing
// turns a missing container into a no-op on the engine side.
func (c *Client) DeleteContainer(ctx context.Context, id string, force, ignoreMissing bool) ([]DeletedContainer, error) {
	const op = "delete container"
	query := url.Values{}
	query.Set("force", strconv.FormatBool(force))
	query.Set("ignore", strconv.FormatBool(ignoreMissing))

	resp, err := c.transport.Delete(ctx, c.path("/containers/"+url.PathEscape(id), query))
	if err != nil {
		return nil, fmt.Errorf("engine %s %s: %w", op, id, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return nil, err
	}
	var deleted []DeletedContainer
	if err := decodeBody(op, resp, &deleted); err != nil {
		return nil, err
	}
	for _, d := range deleted {
		if d.Err != "" {
			return deleted, contractError(op, resp, "engine reported removal error for "+d.ID)
		}
	}
	return deleted, nil
}

// PruneContainers removes stopped containers matching filters.
func (c *Client) PruneContainers(ctx context.Context, filters PruneFilters) ([]PrunedContainer, error) {
	const op = "prune containers"
	raw := map[string][]string{}
	for _, until := range filters.Until {
		raw["until"] = append(raw["until"], strconv.FormatInt(until.Unix(), 10))
	}
	if len(filters.Labels) > 0 {
		raw["label"] = append(raw["label"], filters.Labels...)
	}

	query := url.Values{}
	if len(raw) > 0 {
		encoded, err := encodeFilters(raw)
		if err != nil {
			return nil, fmt.Errorf("engine %s: encode filters: %w", op, err)
		}
		query.Set("filters", encoded)
	}

	resp, err := c.transport.Post(ctx, c.path("/containers/prune", query), nil, "")
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", op, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return nil, err
	}
	var pruned []PrunedContainer
	if err := decodeBody(op, resp, &pruned); err != nil {
		return nil, err
	}
	return pruned, nil
}

// ContainerLogs fetches and demultiplexes the container's stdout and stderr.
// The whole log is buffered in memory.
func (c *Client) ContainerLogs(ctx context.Context, id string) (string, error) {
	const op = "container logs"
	query := url.Values{}
	query.Set("stdout", "true")
	query.Set("stderr", "true")

	resp, err := c.transport.Get(ctx, c.path("/containers/"+url.PathEscape(id)+"/logs", query))
	if err != nil {
		return "", fmt.Errorf("engine %s %s: %w", op, id, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return "", err
	}
	mediaType, _, err := mime.ParseMediaType(resp.ContentType())
	if err != nil || mediaType != logsContentType {
		return "", contractError(op, resp, fmt.Sprintf("unexpected content type %q", resp.ContentType()))
	}
	text, err := DemuxLogs(resp.Body)
	if err != nil {
		return "", &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Reason:     err.Error(),
			Body:       string(resp.Body),
			Err:        err,
		}
	}
	return text, nil
}

// PruneBefore is a convenience for pruning everything with labels created before t.
func PruneBefore(t time.Time, labels ...string) PruneFilters {
	return PruneFilters{Until: []time.Time{t}, Labels: labels}
}
