package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"chartsignal/internal/api"
	"chartsignal/internal/config"
	"chartsignal/internal/logging"
	"chartsignal/internal/metrics"
	"chartsignal/pkg/chartsignal"
)

var exit = os.Exit

func main() {
	var configPath string
	var envFile string
	var port int
	var host string
	var webDir string

	flag.StringVar(&configPath, "config", "", "Path to a TOML config file (optional)")
	flag.StringVar(&envFile, "env-file", "", "Path to a .env file (default .env, ignored when missing)")
	flag.IntVar(&port, "port", -1, "Port to run the server on (overrides config)")
	flag.StringVar(&host, "host", "", "Host to bind the server to (overrides config)")
	flag.StringVar(&webDir, "web-dir", "", "Directory for SPA static files (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		exit(1)
		return
	}
	config.ApplyFlagOverrides(cfg, host, port, webDir)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		exit(1)
		return
	}

	logger, writer, err := logging.NewLogger(logging.Options{
		Dir:           cfg.Logging.Dir,
		RetentionDays: cfg.Logging.RetentionDays,
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
	})
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		exit(1)
		return
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	recorder := metrics.New()
	analyzer := newAnalyzer(cfg, logger, recorder)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	handler := api.NewRouter(analyzer, api.Options{
		Metrics:      recorder,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if resolvedWebDir := resolveWebDir(cfg.Server.WebDir); resolvedWebDir != "" {
		logger.Info("serving SPA", "web_dir", resolvedWebDir)
		handler = api.WithSPA(handler, resolvedWebDir)
	}
	handler = middleware.Compress(5)(handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", addr, "provider", analyzer.Provider(), "configured", analyzer.Configured())
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stop)
	<-stop

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// newAnalyzer wires the configured provider. A missing credential does not
// stop the server; analysis requests fail until it is configured.
func newAnalyzer(cfg *config.Config, logger *slog.Logger, recorder *metrics.Recorder) *chartsignal.Analyzer {
	settings := cfg.ProviderSettings()
	opts := chartsignal.Options{
		Provider: settings.Name,
		Logger:   logger,
		Observer: recorder,
	}

	invoker, err := chartsignal.NewInvoker(settings)
	if err != nil {
		logger.Error("inference provider not configured", "provider", settings.Name, "err", err)
		opts.ConfigErr = err
	} else {
		opts.Invoker = invoker
	}
	return chartsignal.New(opts)
}

func resolveWebDir(input string) string {
	if input != "" {
		if dirExists(input) {
			return input
		}
		return ""
	}

	candidates := []string{"static", "../static"}
	for _, candidate := range candidates {
		if dirExists(candidate) {
			return candidate
		}
	}
	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		for _, candidate := range candidates {
			path := filepath.Join(base, candidate)
			if dirExists(path) {
				return path
			}
		}
	}
	return ""
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
