// Package clientmetrics exposes chat client statistics as Prometheus metrics.
package clientmetrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dialogfire"

// Call outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ClientMetrics tracks message and error statistics of the chat client.
// Counters are registered on a private registry so several instances can
// coexist in one process.
type ClientMetrics struct {
	registry *prometheus.Registry

	calls      *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	bytesSent  prometheus.Counter
	bytesRecv  prometheus.Counter
	inFlight   prometheus.Gauge
	runSamples *prometheus.GaugeVec
	runErrors  *prometheus.GaugeVec

	mu           sync.Mutex
	messagesSent int64
	messagesRecv int64
	errors       int64
}

// New creates and registers the collectors.
func New() *ClientMetrics {
	m := &ClientMetrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_calls_total",
			Help:      "Total number of chat collaborator calls.",
		}, []string{"operation", "category", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_call_duration_seconds",
			Help:      "Latency of chat collaborator calls in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"operation", "category"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_sent_bytes_total",
			Help:      "Bytes of user content sent to the chat API.",
		}),
		bytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_received_bytes_total",
			Help:      "Bytes of assistant content received from the chat API.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_calls_in_flight",
			Help:      "Chat calls currently waiting for a reply.",
		}),
		runSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_samples",
			Help:      "Latency samples recorded by the running test.",
		}, []string{"test"}),
		runErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_errors",
			Help:      "Error records collected by the running test.",
		}, []string{"test"}),
	}
	m.registry.MustRegister(m.calls, m.latency, m.bytesSent, m.bytesRecv, m.inFlight, m.runSamples, m.runErrors)
	return m
}

// Registry returns the registry the collectors live on.
func (m *ClientMetrics) Registry() *prometheus.Registry { return m.registry }

// CallStarted marks a call as in flight.
func (m *ClientMetrics) CallStarted() {
	m.inFlight.Inc()
}

// ObserveCall records the outcome and latency of one call.
func (m *ClientMetrics) ObserveCall(operation string, category int, err error, elapsed time.Duration) {
	m.inFlight.Dec()
	status := StatusOK
	if err != nil {
		status = StatusError
		m.IncrementErrors()
	}
	cat := strconv.Itoa(category)
	m.calls.WithLabelValues(operation, cat, status).Inc()
	m.latency.WithLabelValues(operation, cat).Observe(elapsed.Seconds())
}

// IncrementSent increments messages sent and bytes sent counters.
func (m *ClientMetrics) IncrementSent(bytes int64) {
	m.mu.Lock()
	m.messagesSent++
	m.mu.Unlock()
	m.bytesSent.Add(float64(bytes))
}

// IncrementReceived increments messages received and bytes received counters.
func (m *ClientMetrics) IncrementReceived(bytes int64) {
	m.mu.Lock()
	m.messagesRecv++
	m.mu.Unlock()
	m.bytesRecv.Add(float64(bytes))
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// SetRunProgress publishes the live sample and error counts of a test.
func (m *ClientMetrics) SetRunProgress(test string, samples, errors int) {
	m.runSamples.WithLabelValues(test).Set(float64(samples))
	m.runErrors.WithLabelValues(test).Set(float64(errors))
}

// Totals returns the message and error counts.
func (m *ClientMetrics) Totals() (sent, received, errors int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messagesSent, m.messagesRecv, m.errors
}

// Handler returns the Prometheus metrics handler.
func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *ClientMetrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
