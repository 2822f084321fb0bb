// Package metrics exposes Prometheus metrics for the HTTP surface and for
// token launches, fee claims and fund distributions.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "creator"

// Recorder owns a private registry and every collector registered on it.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	tokens          *prometheus.CounterVec
	feeClaims       *prometheus.CounterVec
	feesClaimedSOL  prometheus.Counter
	distributions   *prometheus.CounterVec
	distributedSOL  *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	transferLatency *prometheus.HistogramVec
}

// New builds a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"handler", "method", "code"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Total number of HTTP requests that resulted in a server error.",
		}, []string{"handler", "method"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"handler", "method"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_created_total",
			Help:      "Token launch attempts by result.",
		}, []string{"result"}),
		feeClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_claims_total",
			Help:      "Creator fee claim attempts by result.",
		}, []string{"result"}),
		feesClaimedSOL: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_claimed_sol_total",
			Help:      "SOL reported as claimed in creator fees.",
		}),
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Fund distribution batches by result.",
		}, []string{"result"}),
		distributedSOL: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributed_amount_total",
			Help:      "Native units confirmed on chain by distribution transfers.",
		}, []string{"ledger"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Individual distribution transfers by ledger and result.",
		}, []string{"ledger", "result"}),
		transferLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Time from submission to confirmation of a transfer.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"ledger"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpErrors,
		r.httpLatency,
		r.tokens,
		r.feeClaims,
		r.feesClaimedSOL,
		r.distributions,
		r.distributedSOL,
		r.transfers,
		r.transferLatency,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (r *Recorder) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		r.httpErrors.WithLabelValues(handler, method).Inc()
	}
	r.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Middleware wraps next and records every request under the handler label.
func (r *Recorder) Middleware(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)
		r.ObserveHTTPRequest(handler, req.Method, sw.status, time.Since(start))
	})
}

// ObserveTokenCreated counts a launch attempt.
func (r *Recorder) ObserveTokenCreated(success bool) {
	r.tokens.WithLabelValues(result(success)).Inc()
}

// ObserveFeeClaim counts a claim attempt and the amount reported by the API.
func (r *Recorder) ObserveFeeClaim(amount float64, success bool) {
	r.feeClaims.WithLabelValues(result(success)).Inc()
	if success && amount > 0 {
		r.feesClaimedSOL.Add(amount)
	}
}

// ObserveDistribution counts a distribution batch.
func (r *Recorder) ObserveDistribution(success bool) {
	r.distributions.WithLabelValues(result(success)).Inc()
}

// ObserveTransfer records a single distribution transfer.
func (r *Recorder) ObserveTransfer(ledger string, amount float64, duration time.Duration, err error) {
	r.transfers.WithLabelValues(ledger, result(err == nil)).Inc()
	r.transferLatency.WithLabelValues(ledger).Observe(duration.Seconds())
	if err == nil && amount > 0 {
		r.distributedSOL.WithLabelValues(ledger).Add(amount)
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string, r *Recorder) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
