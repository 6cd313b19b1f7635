package chartsignal

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ExtractionStep names how the analysis object was located in the raw text.
type ExtractionStep string

const (
	StepFenced   ExtractionStep = "fenced"
	StepBrace    ExtractionStep = "brace"
	StepRaw      ExtractionStep = "raw"
	StepFallback ExtractionStep = "fallback"
)

const (
	notAvailable   = "N/A"
	unparsedText   = "Unable to parse analysis response"
	excerptLimit   = 500
	emptyResponse  = "No response received"
	unparsedWaitOn = "Unable to parse analysis response. Please try again with a clearer chart."
)

var fencedObjectPattern = regexp.MustCompile("(?s)```(?i:json)?\\s*(\\{.*?\\})\\s*```")

// Normalize converts raw model text into a complete AnalysisResult. It never fails.
func Normalize(raw string) AnalysisResult {
	result, _ := normalize(raw)
	return result
}

func normalize(raw string) (AnalysisResult, ExtractionStep) {
	obj, step, ok := extractObject(raw)
	if !ok {
		return fallbackResult(raw), StepFallback
	}
	return completeResult(obj), step
}

func extractObject(raw string) (gjson.Result, ExtractionStep, bool) {
	if m := fencedObjectPattern.FindStringSubmatch(raw); m != nil {
		if obj, ok := parseObject(m[1]); ok {
			return obj, StepFenced, true
		}
	}

	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		if obj, ok := parseObject(raw[start : end+1]); ok {
			return obj, StepBrace, true
		}
	}

	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) {
		whole := gjson.Parse(trimmed)
		if whole.IsObject() {
			return whole, StepRaw, true
		}
		// Some gateways return the object serialized inside a JSON string.
		if whole.Type == gjson.String {
			if obj, ok := parseObject(whole.Str); ok {
				return obj, StepRaw, true
			}
		}
	}
	return gjson.Result{}, StepFallback, false
}

func parseObject(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(text)
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	return obj, true
}

func fallbackResult(raw string) AnalysisResult {
	return AnalysisResult{
		Pattern:            "Unable to parse analysis",
		Recommendation:     RecommendationWait,
		ReasoningShort:     unparsedText,
		Entry:              notAvailable,
		StopLoss:           notAvailable,
		Target:             notAvailable,
		TargetGain:         notAvailable,
		Leverage:           "1x",
		RiskPercent:        notAvailable,
		Probability:        "0%",
		TechnicalSentiment: excerpt(raw),
		FutureImplications: unparsedText,
		MarketStructure:    unparsedText,
		Trend:              notAvailable,
		Momentum:           MomentumNeutral,
		Volume:             notAvailable,
		OptimalEntry:       false,
		WaitCondition:      unparsedWaitOn,
		RiskFactors:        []string{},
		KeyObservations:    []string{},
		Confidence:         "0%",
		Timeframe:          notAvailable,
	}
}

func completeResult(obj gjson.Result) AnalysisResult {
	return AnalysisResult{
		Pattern:            textField(obj, "Unknown Pattern", "pattern"),
		Recommendation:     recommendationField(obj),
		ReasoningShort:     textField(obj, notAvailable, "reasoningShort", "reasoning_short", "reasoning"),
		Entry:              textField(obj, notAvailable, "entry", "entryPrice", "entry_price"),
		StopLoss:           textField(obj, notAvailable, "stopLoss", "stop_loss"),
		Target:             textField(obj, notAvailable, "target", "takeProfit", "take_profit"),
		TargetGain:         percentField(obj, notAvailable, "targetGain", "target_gain"),
		Leverage:           suffixedField(obj, "1x", "x", "leverage"),
		RiskPercent:        percentField(obj, notAvailable, "riskPercent", "risk_percent"),
		Probability:        percentField(obj, "0%", "probability"),
		TechnicalSentiment: textField(obj, notAvailable, "technicalSentiment", "technical_sentiment"),
		FutureImplications: textField(obj, notAvailable, "futureImplications", "future_implications"),
		MarketStructure:    textField(obj, notAvailable, "marketStructure", "market_structure"),
		Trend:              textField(obj, notAvailable, "trend"),
		Momentum:           momentumField(obj),
		Volume:             textField(obj, notAvailable, "volume"),
		OptimalEntry:       boolField(obj, true, "optimalEntry", "optimal_entry"),
		WaitCondition:      textField(obj, notAvailable, "waitCondition", "wait_condition"),
		RiskFactors:        listField(obj, "riskFactors", "risk_factors"),
		KeyObservations:    listField(obj, "keyObservations", "key_observations"),
		Confidence:         percentField(obj, "0%", "confidence"),
		Timeframe:          textField(obj, notAvailable, "timeframe", "timeFrame", "time_frame"),
	}
}

// lookup returns the first present, non-null value among keys.
func lookup(obj gjson.Result, keys ...string) (gjson.Result, bool) {
	for _, key := range keys {
		value := obj.Get(key)
		if value.Exists() && value.Type != gjson.Null {
			return value, true
		}
	}
	return gjson.Result{}, false
}

func textField(obj gjson.Result, fallback string, keys ...string) string {
	value, ok := lookup(obj, keys...)
	if !ok {
		return fallback
	}
	if text := stringify(value); text != "" {
		return text
	}
	return fallback
}

// percentField renders bare numbers with a "%" suffix.
func percentField(obj gjson.Result, fallback string, keys ...string) string {
	return suffixedField(obj, fallback, "%", keys...)
}

func suffixedField(obj gjson.Result, fallback, suffix string, keys ...string) string {
	value, ok := lookup(obj, keys...)
	if !ok {
		return fallback
	}
	text := stringify(value)
	if text == "" {
		return fallback
	}
	if _, err := decimal.NewFromString(text); err == nil {
		return text + suffix
	}
	return text
}

func recommendationField(obj gjson.Result) string {
	value, ok := lookup(obj, "recommendation", "signal", "action")
	if !ok {
		return RecommendationWait
	}
	switch strings.ToUpper(strings.TrimSpace(value.String())) {
	case RecommendationBuy, "LONG":
		return RecommendationBuy
	case RecommendationSell, "SHORT":
		return RecommendationSell
	}
	return RecommendationWait
}

func momentumField(obj gjson.Result) string {
	value, ok := lookup(obj, "momentum")
	if !ok {
		return MomentumNeutral
	}
	text := strings.ToLower(strings.TrimSpace(value.String()))
	for _, m := range []string{MomentumStrengthening, MomentumWeakening, MomentumNeutral} {
		if text == strings.ToLower(m) {
			return m
		}
	}
	// Fading phrasing wins over the word "strength" ("losing strength").
	for _, word := range weakeningWords {
		if strings.Contains(text, word) {
			return MomentumWeakening
		}
	}
	if strings.Contains(text, "strength") {
		return MomentumStrengthening
	}
	return MomentumNeutral
}

var weakeningWords = []string{"weak", "losing", "fading", "fade", "declin", "decreas", "diminish", "waning"}

func boolField(obj gjson.Result, fallback bool, keys ...string) bool {
	value, ok := lookup(obj, keys...)
	if !ok {
		return fallback
	}
	switch value.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return value.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(value.Str)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
	}
	return fallback
}

func listField(obj gjson.Result, keys ...string) []string {
	out := []string{}
	value, ok := lookup(obj, keys...)
	if !ok {
		return out
	}
	if !value.IsArray() {
		if text := stringify(value); text != "" {
			out = append(out, text)
		}
		return out
	}
	for _, item := range value.Array() {
		if text := stringify(item); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// stringify renders any JSON value as display text.
func stringify(value gjson.Result) string {
	switch value.Type {
	case gjson.String:
		return strings.TrimSpace(value.Str)
	case gjson.Number:
		return formatNumber(value.Raw)
	case gjson.True, gjson.False:
		return value.Raw
	case gjson.JSON:
		if value.IsArray() {
			parts := make([]string, 0, len(value.Array()))
			for _, item := range value.Array() {
				if text := stringify(item); text != "" {
					parts = append(parts, text)
				}
			}
			return strings.Join(parts, ", ")
		}
		return strings.TrimSpace(value.Raw)
	}
	return ""
}

// formatNumber renders a JSON number literal without exponent or trailing zeros.
func formatNumber(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return d.String()
}

func excerpt(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return emptyResponse
	}
	if utf8.RuneCountInString(text) <= excerptLimit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:excerptLimit])) + "..."
}
