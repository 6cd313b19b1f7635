package chartsignal

import (
	"encoding/base64"
	"strings"
)

// Strategy labels the trading horizon a chart is analyzed for.
type Strategy string

const (
	StrategyScalping Strategy = "scalping"
	StrategyDay      Strategy = "day"
	StrategySwing    Strategy = "swing"
	StrategyPosition Strategy = "position"
	StrategyMomentum Strategy = "momentum"
	StrategyCounter  Strategy = "counter"
)

// DefaultStrategy applies when a request does not name one.
const DefaultStrategy = StrategyScalping

var strategies = []Strategy{
	StrategyScalping,
	StrategyDay,
	StrategySwing,
	StrategyPosition,
	StrategyMomentum,
	StrategyCounter,
}

// Strategies returns the accepted strategies in display order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// ParseStrategy matches a label case-insensitively. Blank input yields DefaultStrategy.
func ParseStrategy(raw string) (Strategy, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return DefaultStrategy, true
	}
	for _, s := range strategies {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

func (s Strategy) String() string {
	return string(s)
}

// Recommendation values.
const (
	RecommendationBuy  = "BUY"
	RecommendationSell = "SELL"
	RecommendationWait = "WAIT"
)

// Momentum values.
const (
	MomentumStrengthening = "Strengthening"
	MomentumWeakening     = "Weakening"
	MomentumNeutral       = "Neutral"
)

// Limits on a single request.
const (
	MaxImages     = 8
	MaxImageBytes = 5 * 1024 * 1024
)

// AnalysisRequest is the wire form of an analysis request.
type AnalysisRequest struct {
	Images   []string `json:"images"`
	Image    string   `json:"image,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
}

// ImagePayload is a decoded chart image.
type ImagePayload struct {
	MediaType string
	Data      []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (p ImagePayload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI renders the image as a base64 data URI.
func (p ImagePayload) DataURI() string {
	return "data:" + p.MediaType + ";base64," + p.Base64()
}

// ValidatedRequest is an AnalysisRequest that passed every check.
type ValidatedRequest struct {
	Images   []ImagePayload
	Strategy Strategy
}

// AnalysisResult is the fully populated analysis returned to callers.
// Every field is always set; slices are never nil.
type AnalysisResult struct {
	Pattern            string   `json:"pattern"`
	Recommendation     string   `json:"recommendation"`
	ReasoningShort     string   `json:"reasoningShort"`
	Entry              string   `json:"entry"`
	StopLoss           string   `json:"stopLoss"`
	Target             string   `json:"target"`
	TargetGain         string   `json:"targetGain"`
	Leverage           string   `json:"leverage"`
	RiskPercent        string   `json:"riskPercent"`
	Probability        string   `json:"probability"`
	TechnicalSentiment string   `json:"technicalSentiment"`
	FutureImplications string   `json:"futureImplications"`
	MarketStructure    string   `json:"marketStructure"`
	Trend              string   `json:"trend"`
	Momentum           string   `json:"momentum"`
	Volume             string   `json:"volume"`
	OptimalEntry       bool     `json:"optimalEntry"`
	WaitCondition      string   `json:"waitCondition"`
	RiskFactors        []string `json:"riskFactors"`
	KeyObservations    []string `json:"keyObservations"`
	Confidence         string   `json:"confidence"`
	Timeframe          string   `json:"timeframe"`
}
