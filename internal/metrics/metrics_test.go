package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.DueRecomputed(true)
	m.DueRecomputed(false)
	m.DueRecomputed(false)
	m.ScopeViolation("enrollment.authorize")
	m.SessionTransition("COMPLETED")
	m.LiveStreamsEnded(2)
	m.LiveStreamsEnded(0)

	if got := testutil.ToFloat64(m.dueRecomputations.WithLabelValues("unchanged")); got != 2 {
		t.Fatalf("expected 2 unchanged recomputations, got %v", got)
	}
	if got := testutil.ToFloat64(m.dueRecomputations.WithLabelValues("changed")); got != 1 {
		t.Fatalf("expected 1 changed recomputation, got %v", got)
	}
	if got := testutil.ToFloat64(m.scopeViolations.WithLabelValues("enrollment.authorize")); got != 1 {
		t.Fatalf("expected 1 scope violation, got %v", got)
	}
	if got := testutil.ToFloat64(m.liveStreamsEnded); got != 2 {
		t.Fatalf("expected 2 ended streams, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.DueRecomputed(true)
	m.ScopeViolation("x")
	m.SessionTransition("ONGOING")
	m.ProfileMissing()
	m.LiveStreamsEnded(3)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New()
	m.ProfileMissing()

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "prolean_profile_missing_total 1") {
		t.Fatalf("expected counter in output, got:\n%s", body)
	}
}
