package output

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/dialogfire/internal/metrics"
)

type stubSource struct {
	calls atomic.Int64
}

func (s *stubSource) Snapshot() metrics.Snapshot {
	n := s.calls.Add(1)
	return metrics.Snapshot{
		Name:           "concurrent_dialogs",
		Total:          int(n * 10),
		Errors:         1,
		Elapsed:        1500 * time.Millisecond,
		P50Ms:          42.4,
		P95Ms:          120.6,
		RequestsPerSec: 6.66,
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterBasic(t *testing.T) {
	source := &stubSource{}
	var out lockedBuffer
	reporter := NewProgressReporter(source, 10*time.Millisecond, &out)

	var seen atomic.Int64
	reporter.OnSnapshot = func(metrics.Snapshot) { seen.Add(1) }

	reporter.Start()
	reporter.Start() // second start is a no-op
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()
	reporter.Stop() // second stop is a no-op

	text := out.String()
	if !strings.Contains(text, "[concurrent_dialogs]") {
		t.Errorf("missing test name in %q", text)
	}
	if !strings.HasSuffix(text, "\n") {
		t.Error("expected progress line to be terminated")
	}
	if seen.Load() < 2 {
		t.Errorf("OnSnapshot called %d times, want at least 2", seen.Load())
	}
	if seen.Load() != source.calls.Load() {
		t.Errorf("OnSnapshot calls = %d, snapshots = %d", seen.Load(), source.calls.Load())
	}
}

func TestProgressReporterFinalTick(t *testing.T) {
	source := &stubSource{}
	var out lockedBuffer
	reporter := NewProgressReporter(source, time.Hour, &out)

	reporter.Start()
	reporter.Stop()

	if source.calls.Load() != 1 {
		t.Fatalf("snapshots = %d, want 1 final tick", source.calls.Load())
	}
	if !strings.Contains(out.String(), "Requests: 10") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestProgressReporterNilWriter(t *testing.T) {
	reporter := NewProgressReporter(&stubSource{}, time.Hour, nil)
	reporter.Start()
	reporter.Stop()
}

func TestFormatProgress(t *testing.T) {
	got := FormatProgress(metrics.Snapshot{
		Name:           "response_time",
		Total:          20,
		Errors:         3,
		Elapsed:        2500 * time.Millisecond,
		P50Ms:          42.4,
		P95Ms:          120.6,
		RequestsPerSec: 8.04,
	})
	want := "\r[response_time] Requests: 20 | Errors: 3 | RPS: 8.0 | P50: 42ms | P95: 121ms | Elapsed: 2s"
	if got != want {
		t.Errorf("FormatProgress() =\n%q\nwant\n%q", got, want)
	}
}
