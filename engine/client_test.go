package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/izavyalov-dev/jarforge/engine/transport"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

type fakeTransport struct {
	responses []*transport.Response
	err       error
	requests  []recordedRequest
}

func (f *fakeTransport) respond(method, path string, body []byte, contentType string) (*transport.Response, error) {
	f.requests = append(f.requests, recordedRequest{Method: method, Path: path, ContentType: contentType, Body: body})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fake transport: no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return resp, nil
}

func (f *fakeTransport) Get(ctx context.Context, path string) (*transport.Response, error) {
	return f.respond(http.MethodGet, path, nil, "")
}

func (f *fakeTransport) Post(ctx context.Context, path string, body []byte, contentType string) (*transport.Response, error) {
	return f.respond(http.MethodPost, path, body, contentType)
}

func (f *fakeTransport) PostJSON(ctx context.Context, path string, payload any) (*transport.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return f.respond(http.MethodPost, path, data, "application/json")
}

func (f *fakeTransport) Delete(ctx context.Context, path string) (*transport.Response, error) {
	return f.respond(http.MethodDelete, path, nil, "")
}

func reply(status int, body string) *transport.Response {
	return &transport.Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
}

func splitPath(t *testing.T, raw string) (string, url.Values) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse path %q: %v", raw, err)
	}
	return u.Path, u.Query()
}

func TestCreateContainerSendsSpec(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{reply(http.StatusCreated, `{"Id":"c1","Warnings":[]}`)}}
	client := NewClient(ft, "")

	id, err := client.CreateContainer(context.Background(), ContainerSpec{
		Image:              "localhost/jarforge:latest",
		Command:            []string{"/app/jarforge", "builder", "paper"},
		Labels:             map[string]string{"jarforge.owner": "jarforge"},
		Mounts:             []Mount{BindMount("/src", "/app", "ro"), TmpfsMount("/tmp")},
		WorkDir:            "/app",
		NoNewPrivileges:    true,
		ReadOnlyFilesystem: true,
		Volatile:           true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "c1" {
		t.Fatalf("expected c1, got %q", id)
	}

	req := ft.requests[0]
	if req.Method != http.MethodPost || req.Path != "/v4.0.0/libpod/containers/create" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", req.ContentType)
	}
	var sent map[string]any
	if err := json.Unmarshal(req.Body, &sent); err != nil {
		t.Fatalf("decode sent spec: %v", err)
	}
	for _, key := range []string{"no_new_privileges", "read_only_filesystem", "volatile"} {
		if sent[key] != true {
			t.Fatalf("expected %s=true in %s", key, req.Body)
		}
	}
	mounts, ok := sent["mounts"].([]any)
	if !ok || len(mounts) != 2 {
		t.Fatalf("expected 2 mounts, got %v", sent["mounts"])
	}
	tmpfs := mounts[1].(map[string]any)
	if tmpfs["type"] != "tmpfs" || tmpfs["destination"] != "/tmp" {
		t.Fatalf("unexpected tmpfs mount %v", tmpfs)
	}
}

func TestCreateContainerUnexpectedStatusCarriesBody(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{reply(http.StatusInternalServerError, `{"cause":"no such image"}`)}}
	client := NewClient(ft, "")

	_, err := client.CreateContainer(context.Background(), ContainerSpec{Image: "missing"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "no such image") {
		t.Fatalf("error should embed raw body: %v", err)
	}
}

func TestCreateContainerMissingID(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{reply(http.StatusCreated, `{}`)}}
	_, err := NewClient(ft, "").CreateContainer(context.Background(), ContainerSpec{Image: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing Id") {
		t.Fatalf("expected missing id error, got %v", err)
	}
}

func TestStartContainerExpects204(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusNoContent, ""),
		reply(http.StatusNotModified, ""),
	}}
	client := NewClient(ft, "/v5.0.0/libpod/")

	if err := client.StartContainer(context.Background(), "c1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ft.requests[0].Path != "/v5.0.0/libpod/containers/c1/start" {
		t.Fatalf("unexpected path %q", ft.requests[0].Path)
	}
	if err := client.StartContainer(context.Background(), "c1"); err == nil {
		t.Fatal("expected error on 304")
	}
}

func TestWaitContainerParsesExitCode(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusOK, "137\n"),
		reply(http.StatusOK, `{"StatusCode":0}`),
	}}
	client := NewClient(ft, "")

	code, err := client.WaitContainer(context.Background(), "c1", ConditionExited)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 137 {
		t.Fatalf("expected 137, got %d", code)
	}
	path, query := splitPath(t, ft.requests[0].Path)
	if path != "/v4.0.0/libpod/containers/c1/wait" || query.Get("condition") != "exited" {
		t.Fatalf("unexpected wait request %q", ft.requests[0].Path)
	}

	if _, err := client.WaitContainer(context.Background(), "c1", ConditionExited); err == nil {
		t.Fatal("expected error for non-integer body")
	}
}

func TestDeleteContainerQueryAndNotFound(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusOK, `[{"Id":"c1"}]`),
		reply(http.StatusNotFound, `{"cause":"no such container"}`),
	}}
	client := NewClient(ft, "")

	deleted, err := client.DeleteContainer(context.Background(), "c1", true, true)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != "c1" {
		t.Fatalf("unexpected deleted list %v", deleted)
	}
	if ft.requests[0].Method != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", ft.requests[0].Method)
	}
	_, query := splitPath(t, ft.requests[0].Path)
	if query.Get("force") != "true" || query.Get("ignore") != "true" {
		t.Fatalf("unexpected delete query %v", query)
	}

	_, err = client.DeleteContainer(context.Background(), "c2", false, false)
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListContainersRejectsNonArray(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusOK, `[{"Id":"c1","Names":["jarforge-paper-1"],"State":"running","Labels":{"jarforge.owner":"jarforge"}}]`),
		reply(http.StatusOK, `{"Id":"c1"}`),
	}}
	client := NewClient(ft, "")

	containers, err := client.ListContainers(context.Background(), false, map[string][]string{"label": {"jarforge.owner=jarforge"}}, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(containers) != 1 || containers[0].State != "running" {
		t.Fatalf("unexpected containers %+v", containers)
	}
	_, query := splitPath(t, ft.requests[0].Path)
	if query.Get("all") != "false" || query.Get("limit") != "10" {
		t.Fatalf("unexpected list query %v", query)
	}
	if query.Get("filters") != `{"label":["jarforge.owner=jarforge"]}` {
		t.Fatalf("unexpected filters %q", query.Get("filters"))
	}

	if _, err := client.ListContainers(context.Background(), true, nil, 0); err == nil {
		t.Fatal("expected error for object body")
	}
}

func TestPruneContainersEncodesFilters(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{reply(http.StatusOK, `[{"Id":"old","Size":2048}]`)}}
	client := NewClient(ft, "")

	until := time.Unix(1700000000, 0)
	pruned, err := client.PruneContainers(context.Background(), PruneBefore(until, "jarforge.owner=jarforge"))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(pruned) != 1 || pruned[0].Size != 2048 {
		t.Fatalf("unexpected pruned list %+v", pruned)
	}
	path, query := splitPath(t, ft.requests[0].Path)
	if path != "/v4.0.0/libpod/containers/prune" {
		t.Fatalf("unexpected path %q", path)
	}
	if query.Get("filters") != `{"label":["jarforge.owner=jarforge"],"until":["1700000000"]}` {
		t.Fatalf("unexpected filters %q", query.Get("filters"))
	}
}

func TestContainerLogs(t *testing.T) {
	body := append(EncodeFrame(StreamStdout, []byte("building\n")), EncodeFrame(StreamStderr, []byte("boom"))...)
	ok := &transport.Response{StatusCode: http.StatusOK, Header: http.Header{"Content-Type": {"application/octet-stream"}}, Body: body}
	wrongType := &transport.Response{StatusCode: http.StatusOK, Header: http.Header{"Content-Type": {"text/plain"}}, Body: body}
	badStream := &transport.Response{StatusCode: http.StatusOK, Header: http.Header{"Content-Type": {"application/octet-stream"}}, Body: EncodeFrame(9, []byte("?"))}

	ft := &fakeTransport{responses: []*transport.Response{ok, wrongType, badStream}}
	client := NewClient(ft, "")

	text, err := client.ContainerLogs(context.Background(), "c1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if text != "\n[stdout] building\n\n[stderr] boom" {
		t.Fatalf("unexpected log text %q", text)
	}
	_, query := splitPath(t, ft.requests[0].Path)
	if query.Get("stdout") != "true" || query.Get("stderr") != "true" {
		t.Fatalf("unexpected logs query %v", query)
	}

	if _, err := client.ContainerLogs(context.Background(), "c1"); err == nil || !strings.Contains(err.Error(), "content type") {
		t.Fatalf("expected content type error, got %v", err)
	}
	if _, err := client.ContainerLogs(context.Background(), "c1"); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestPullImage(t *testing.T) {
	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusOK, "{\"stream\":\"Trying to pull...\\n\"}\n{\"images\":[\"sha256:abc\"],\"id\":\"abc\"}\n"),
		reply(http.StatusOK, `{"stream":"no id here"}`),
	}}
	client := NewClient(ft, "")

	if _, err := client.PullImage(context.Background(), "docker.io/library/alpine", "sometimes"); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if len(ft.requests) != 0 {
		t.Fatalf("invalid policy must not reach the engine")
	}

	id, err := client.PullImage(context.Background(), "docker.io/library/alpine", PullMissing)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if id != "abc" {
		t.Fatalf("expected abc, got %q", id)
	}
	_, query := splitPath(t, ft.requests[0].Path)
	if query.Get("reference") != "docker.io/library/alpine" || query.Get("policy") != "missing" {
		t.Fatalf("unexpected pull query %v", query)
	}

	if _, err := client.PullImage(context.Background(), "x", PullAlways); err == nil {
		t.Fatal("expected error when id is missing")
	}
}

func TestBuildImageUploadsContext(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Containerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatalf("write containerfile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "entry.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	ft := &fakeTransport{responses: []*transport.Response{
		reply(http.StatusOK, "{\"stream\":\"STEP 1/1: FROM scratch\\n\"}\n{\"stream\":\"d34db33f\\n\"}\n"),
		reply(http.StatusOK, "{\"stream\":\"STEP 1/1\"}\n{\"error\":\"no space left\"}\n"),
	}}
	client := NewClient(ft, "")

	id, err := client.BuildImage(context.Background(), filepath.Join(dir, "Containerfile"), "localhost/jarforge:latest", map[string]string{"jarforge.owner": "jarforge"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if id != "d34db33f" {
		t.Fatalf("expected d34db33f, got %q", id)
	}

	req := ft.requests[0]
	if req.ContentType != "application/x-tar" {
		t.Fatalf("unexpected content type %q", req.ContentType)
	}
	_, query := splitPath(t, req.Path)
	if query.Get("dockerfile") != "Containerfile" || query.Get("t") != "localhost/jarforge:latest" {
		t.Fatalf("unexpected build query %v", query)
	}
	names := tarNames(t, req.Body)
	for _, want := range []string{"Containerfile", "scripts/", "scripts/entry.sh"} {
		if !names[want] {
			t.Fatalf("build context missing %s: %v", want, names)
		}
	}

	if _, err := client.BuildImage(context.Background(), filepath.Join(dir, "Containerfile"), "x", nil); err == nil || !strings.Contains(err.Error(), "no space left") {
		t.Fatalf("expected build failure, got %v", err)
	}
}

func TestPingReadsHeaders(t *testing.T) {
	resp := reply(http.StatusOK, "OK")
	resp.Header.Set("Libpod-API-Version", "4.9.3")
	resp.Header.Set("API-Version", "1.41")
	resp.Header.Set("Server", "Libpod/4.9.3 (linux)")
	ft := &fakeTransport{responses: []*transport.Response{resp, reply(http.StatusOK, "OK")}}
	client := NewClient(ft, "")

	info, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if info.LibpodAPIVersion != "4.9.3" || info.APIVersion != "1.41" {
		t.Fatalf("unexpected ping info %+v", info)
	}
	if _, err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error without version headers")
	}
}

func TestTransportErrorsPropagate(t *testing.T) {
	ft := &fakeTransport{err: &transport.TransportError{Method: "GET", Path: "/x", Err: errors.New("connection refused")}}
	_, err := NewClient(ft, "").ListContainers(context.Background(), true, nil, 0)
	var transportErr *transport.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func tarNames(t *testing.T, data []byte) map[string]bool {
	t.Helper()
	names := map[string]bool{}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		names[hdr.Name] = true
	}
	return names
}
