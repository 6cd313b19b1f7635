package chartsignal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Analysis outcomes reported to an Observer.
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeUnavailable   = "unavailable"
	OutcomeMisconfigured = "misconfigured"
)

// Observer receives pipeline events. A nil Observer is allowed.
type Observer interface {
	ObserveAnalysis(outcome string)
	ObserveExtraction(step string)
	ObserveProvider(provider string, ok bool, elapsed time.Duration)
}

// Options configures an Analyzer.
type Options struct {
	// Invoker may be nil when the provider is not configured; every analysis
	// then fails with ErrCodeConfiguration.
	Invoker  Invoker
	Provider string
	// ConfigErr is the reason the Invoker is missing, reported on each request.
	ConfigErr error
	Logger    *slog.Logger
	Observer  Observer
}

// Analyzer runs validate, build prompt, invoke and normalize for one request.
type Analyzer struct {
	validator *Validator
	invoker   Invoker
	provider  string
	configErr error
	logger    *slog.Logger
	observer  Observer
}

// New returns an Analyzer. It is safe for concurrent use.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		validator: NewValidator(),
		invoker:   opts.Invoker,
		provider:  normalizeProviderName(opts.Provider),
		configErr: opts.ConfigErr,
		logger:    logger,
		observer:  opts.Observer,
	}
}

// Logger returns the analyzer logger.
func (a *Analyzer) Logger() *slog.Logger {
	return a.logger
}

// Provider returns the configured provider name.
func (a *Analyzer) Provider() string {
	return a.provider
}

// Configured reports whether an inference provider is available.
func (a *Analyzer) Configured() bool {
	return a.invoker != nil
}

// Analyze validates req, calls the provider once and returns the normalized result.
// Validation failures never reach the provider.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	validated, err := a.validator.Validate(req)
	if err != nil {
		a.logger.Warn("chart analysis request rejected", "err", err, "images", len(req.Images))
		a.observeAnalysis(OutcomeInvalid)
		return nil, err
	}

	if a.invoker == nil {
		err := a.configErr
		if err == nil {
			err = NewError(ErrCodeConfiguration, "inference provider is not configured")
		}
		a.logger.Error("chart analysis provider not configured", "provider", a.provider, "err", err)
		a.observeAnalysis(OutcomeMisconfigured)
		return nil, WrapError(ErrCodeConfiguration, "inference provider is not configured", err)
	}

	prompt := BuildPrompt(validated)

	start := time.Now()
	raw, err := a.invoker.Invoke(ctx, prompt)
	elapsed := time.Since(start)
	if a.observer != nil {
		a.observer.ObserveProvider(a.provider, err == nil, elapsed)
	}
	if err != nil {
		a.logger.Error("chart analysis provider call failed",
			"provider", a.provider,
			"strategy", validated.Strategy.String(),
			"images", len(validated.Images),
			"duration_ms", elapsed.Milliseconds(),
			"err", err,
		)
		a.observeAnalysis(OutcomeUnavailable)
		if !errors.Is(err, ErrAnalysisUnavailable) {
			err = WrapError(ErrCodeUnavailable, a.provider+" request failed", err)
		}
		return nil, err
	}

	result, step := normalize(raw)
	if a.observer != nil {
		a.observer.ObserveExtraction(string(step))
	}
	if step == StepFallback {
		a.logger.Warn("chart analysis response not parseable, using fallback",
			"provider", a.provider,
			"response_bytes", len(raw),
		)
	} else {
		a.logger.Debug("chart analysis response normalized", "provider", a.provider, "step", string(step))
	}

	a.observeAnalysis(OutcomeOK)
	return &result, nil
}

func (a *Analyzer) observeAnalysis(outcome string) {
	if a.observer != nil {
		a.observer.ObserveAnalysis(outcome)
	}
}
