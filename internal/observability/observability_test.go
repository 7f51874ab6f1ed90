package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewMetrics(registry)
	second := NewMetrics(registry)

	first.IncBuild("paper", "succeeded")
	second.IncBuild("paper", "succeeded")
	second.SetRunning(3)

	if got := testutil.ToFloat64(first.builds.WithLabelValues("paper", "succeeded")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
	if got := testutil.ToFloat64(first.running); got != 3 {
		t.Fatalf("expected running gauge 3, got %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.IncBuild("paper", "failed")
	m.IncContainer("created")
	m.IncFailure("infra")
	m.SetRunning(1)
}

func TestHealthzReportsCheckFailure(t *testing.T) {
	handler := NewHTTPHandler(func(ctx context.Context) error {
		return errors.New("socket missing")
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "socket missing") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	healthy := NewHTTPHandler(nil, nil)
	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWithContainerShortensID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("unexpected short id %q", got)
	}
	if WithContainer(nil, "abc") != nil {
		t.Fatal("nil logger should stay nil")
	}
}
