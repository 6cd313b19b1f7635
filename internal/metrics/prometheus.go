package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chartsignal"

// Recorder implements chartsignal.Observer and HTTP metrics using Prometheus.
// Each Recorder owns its registry.
type Recorder struct {
	registry         *prometheus.Registry
	analyses         *prometheus.CounterVec
	extractions      *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_requests_total",
				Help:      "Total number of chart analysis requests by outcome",
			},
			[]string{"outcome"},
		),
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_extraction_total",
				Help:      "Total number of normalized responses by extraction step",
			},
			[]string{"step"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_duration_seconds",
				Help:      "Duration of inference provider calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the exposition format for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one analysis outcome.
func (r *Recorder) ObserveAnalysis(outcome string) {
	r.analyses.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records which extraction step produced the result.
func (r *Recorder) ObserveExtraction(step string) {
	r.extractions.WithLabelValues(step).Inc()
}

// ObserveProvider records the latency of one provider call.
func (r *Recorder) ObserveProvider(provider string, ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.providerDuration.WithLabelValues(provider, result).Observe(elapsed.Seconds())
}

// Middleware records route-labelled request counts and durations.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		}

		next.ServeHTTP(ww, req)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routeLabel(req)
		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps label cardinality bounded by using the chi route pattern.
// Requests answered by middleware before routing (CORS preflights) are
// matched against the routing tree without running a handler.
func routeLabel(req *http.Request) string {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		return "unmatched"
	}
	if pattern := rc.RoutePattern(); pattern != "" {
		return pattern
	}
	if rc.Routes != nil {
		lookup := chi.NewRouteContext()
		if rc.Routes.Match(lookup, req.Method, req.URL.Path) {
			if pattern := lookup.RoutePattern(); pattern != "" {
				return pattern
			}
		}
	}
	return "unmatched"
}
