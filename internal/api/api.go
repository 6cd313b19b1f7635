package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chartsignal/internal/metrics"
	"chartsignal/pkg/chartsignal"
)

// allowedHeaders are the request headers browser clients of the analyze
// endpoint send.
var allowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// Options configures NewRouter.
type Options struct {
	// Metrics enables HTTP metrics and the /metrics endpoint when set.
	Metrics *metrics.Recorder
	// MaxBodyBytes caps analyze request bodies when positive.
	MaxBodyBytes int64
}

// NewRouter builds the HTTP API router.
func NewRouter(analyzer *chartsignal.Analyzer, opts Options) http.Handler {
	if analyzer == nil {
		analyzer = chartsignal.New(chartsignal.Options{})
	}
	logger := analyzer.Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoveryLoggingMiddleware(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: allowedHeaders,
	}))

	h := &handler{
		analyzer:     analyzer,
		logger:       logger,
		maxBodyBytes: opts.MaxBodyBytes,
	}

	r.Get("/api/health", h.health)

	// Chart analysis. The second path keeps existing edge-function clients working.
	for _, path := range []string{"/api/analyze-chart", "/functions/v1/analyze-chart"} {
		r.Post(path, h.analyzeChart)
		r.Options(path, h.preflight)
	}

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	return r
}

type handler struct {
	analyzer     *chartsignal.Analyzer
	logger       *slog.Logger
	maxBodyBytes int64
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
