package clientmetrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCall(t *testing.T) {
	m := New()
	m.CallStarted()
	m.ObserveCall("complete", 2, nil, 150*time.Millisecond)
	m.CallStarted()
	m.ObserveCall("complete", 2, errors.New("timeout"), time.Second)

	if got := testutil.ToFloat64(m.calls.WithLabelValues("complete", "2", StatusOK)); got != 1 {
		t.Errorf("expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("complete", "2", StatusError)); got != 1 {
		t.Errorf("expected 1 failed call, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("expected nothing in flight, got %v", got)
	}
	if _, _, errs := m.Totals(); errs != 1 {
		t.Errorf("expected 1 error, got %d", errs)
	}
}

func TestSentReceivedCounters(t *testing.T) {
	m := New()
	m.IncrementSent(10)
	m.IncrementSent(5)
	m.IncrementReceived(100)

	sent, received, _ := m.Totals()
	if sent != 2 || received != 1 {
		t.Fatalf("expected 2 sent and 1 received, got %d and %d", sent, received)
	}
	if got := testutil.ToFloat64(m.bytesSent); got != 15 {
		t.Errorf("expected 15 bytes sent, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetRunProgress("concurrent_dialogs", 12, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `dialogfire_run_samples{test="concurrent_dialogs"} 12`) {
		t.Errorf("run samples gauge missing from output:\n%s", body)
	}
	if !strings.Contains(string(body), `dialogfire_run_errors{test="concurrent_dialogs"} 3`) {
		t.Errorf("run errors gauge missing from output:\n%s", body)
	}
}

func TestInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.IncrementErrors()
	if _, _, errs := b.Totals(); errs != 0 {
		t.Fatalf("expected independent instances, got %d errors", errs)
	}
}
