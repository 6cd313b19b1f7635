package mobile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chartsignal/pkg/chartsignal"
)

// Core wraps the chart analyzer for gomobile bindings. Every method takes and
// returns plain strings so it binds without custom types.
type Core struct {
	analyzer *chartsignal.Analyzer
}

// Open creates a Core for the named provider. baseURL and model may be empty
// to use the provider defaults; timeoutSeconds <= 0 disables the call timeout.
func Open(provider, apiKey, baseURL, model string, timeoutSeconds int) (*Core, error) {
	settings := chartsignal.ProviderConfig{
		Name:    provider,
		BaseURL: baseURL,
		Model:   model,
		APIKey:  apiKey,
	}
	if timeoutSeconds > 0 {
		settings.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	invoker, err := chartsignal.NewInvoker(settings)
	if err != nil {
		return nil, err
	}
	return &Core{analyzer: chartsignal.New(chartsignal.Options{Invoker: invoker, Provider: provider})}, nil
}

// AnalyzeJSON takes an analyze-chart request body and returns the result JSON.
// Errors carry the client-safe message only.
func (c *Core) AnalyzeJSON(requestJSON string) (string, error) {
	if c == nil || c.analyzer == nil {
		return "", errors.New(chartsignal.GenericFailureMessage)
	}
	var req chartsignal.AnalysisRequest
	if err := json.Unmarshal([]byte(requestJSON), &req); err != nil {
		return "", errors.New(chartsignal.MsgInvalidBody)
	}
	result, err := c.analyzer.Analyze(context.Background(), req)
	if err != nil {
		return "", errors.New(chartsignal.ClientMessage(err))
	}
	return marshalJSON(result)
}

// StrategiesJSON lists the accepted strategy names.
func StrategiesJSON() (string, error) {
	names := make([]string, 0, len(chartsignal.Strategies()))
	for _, strategy := range chartsignal.Strategies() {
		names = append(names, strategy.String())
	}
	return marshalJSON(names)
}

// Providers returns the supported provider names, comma separated.
func Providers() string {
	return strings.Join(chartsignal.Providers(), ",")
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
