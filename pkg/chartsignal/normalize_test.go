package chartsignal

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeFencedPartialObject(t *testing.T) {
	raw := "```json\n{\"pattern\":\"Double Top\",\"recommendation\":\"SELL\"}\n```"

	got, step := normalize(raw)
	if step != StepFenced {
		t.Fatalf("expected fenced step, got %q", step)
	}
	if got.Pattern != "Double Top" || got.Recommendation != RecommendationSell {
		t.Fatalf("unexpected pattern/recommendation: %q %q", got.Pattern, got.Recommendation)
	}
	if got.Entry != "N/A" || got.Leverage != "1x" || got.Probability != "0%" || got.Confidence != "0%" {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if got.Momentum != MomentumNeutral || !got.OptimalEntry {
		t.Fatalf("unexpected momentum/optimalEntry: %q %v", got.Momentum, got.OptimalEntry)
	}
	if got.RiskFactors == nil || len(got.RiskFactors) != 0 || got.KeyObservations == nil {
		t.Fatalf("expected empty non-nil lists, got %#v %#v", got.RiskFactors, got.KeyObservations)
	}
}

func TestNormalizePlainProseFallsBack(t *testing.T) {
	raw := "The chart shows a strong uptrend with no clear entry."

	got, step := normalize(raw)
	if step != StepFallback {
		t.Fatalf("expected fallback step, got %q", step)
	}
	if got.Recommendation != RecommendationWait || got.Pattern != "Unable to parse analysis" {
		t.Fatalf("unexpected fallback: %+v", got)
	}
	if got.TechnicalSentiment != raw {
		t.Fatalf("expected excerpt of prose, got %q", got.TechnicalSentiment)
	}
	if got.Confidence != "0%" || got.OptimalEntry {
		t.Fatalf("unexpected confidence/optimalEntry: %q %v", got.Confidence, got.OptimalEntry)
	}
	if !strings.Contains(got.WaitCondition, "clearer chart") {
		t.Fatalf("unexpected wait condition %q", got.WaitCondition)
	}
}

func TestNormalizeExtractionSteps(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		step    ExtractionStep
		pattern string
	}{
		{name: "fenced without language", raw: "Here you go:\n```\n{\"pattern\":\"Flag\"}\n```\nGood luck", step: StepFenced, pattern: "Flag"},
		{name: "fenced uppercase language", raw: "```JSON {\"pattern\":\"Wedge\"} ```", step: StepFenced, pattern: "Wedge"},
		{name: "brace inside prose", raw: "Analysis: {\"pattern\":\"Head and Shoulders\",\"trend\":\"Down\"} end.", step: StepBrace, pattern: "Head and Shoulders"},
		{name: "bare object", raw: "  {\"pattern\":\"Triangle\"}  ", step: StepBrace, pattern: "Triangle"},
		{name: "invalid fence then brace", raw: "```json\n{broken}\n``` but {\"pattern\":\"Cup\"}", step: StepFallback, pattern: "Unable to parse analysis"},
		{name: "object serialized in string", raw: `"{\"pattern\":\"Pennant\"}"`, step: StepRaw, pattern: "Pennant"},
		{name: "array is not an object", raw: `[{"pattern":"x"}]`, step: StepBrace, pattern: "x"},
		{name: "empty", raw: "", step: StepFallback, pattern: "Unable to parse analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, step := normalize(tt.raw)
			if step != tt.step {
				t.Fatalf("step = %q, want %q", step, tt.step)
			}
			if got.Pattern != tt.pattern {
				t.Fatalf("pattern = %q, want %q", got.Pattern, tt.pattern)
			}
		})
	}
}

func TestNormalizeCoercesValues(t *testing.T) {
	raw := `{
		"pattern": "Bull Flag",
		"recommendation": "buy",
		"entry": 425.50,
		"stop_loss": "418.20",
		"target": 440,
		"targetGain": 3.4,
		"leverage": 5,
		"riskPercent": "1.5%",
		"probability": 72,
		"momentum": "strengthening momentum",
		"optimalEntry": "no",
		"riskFactors": ["Low volume", "", 3],
		"keyObservations": "Break of structure on 1H",
		"confidence": "80%",
		"timeframe": null
	}`

	got := Normalize(raw)

	checks := map[string][2]string{
		"recommendation": {got.Recommendation, "BUY"},
		"entry":          {got.Entry, "425.5"},
		"stopLoss":       {got.StopLoss, "418.20"},
		"target":         {got.Target, "440"},
		"targetGain":     {got.TargetGain, "3.4%"},
		"leverage":       {got.Leverage, "5x"},
		"riskPercent":    {got.RiskPercent, "1.5%"},
		"probability":    {got.Probability, "72%"},
		"momentum":       {got.Momentum, MomentumStrengthening},
		"confidence":     {got.Confidence, "80%"},
		"timeframe":      {got.Timeframe, "N/A"},
		"reasoningShort": {got.ReasoningShort, "N/A"},
	}
	for field, pair := range checks {
		if pair[0] != pair[1] {
			t.Fatalf("%s = %q, want %q", field, pair[0], pair[1])
		}
	}
	if got.OptimalEntry {
		t.Fatalf("expected optimalEntry false from \"no\"")
	}
	if !reflect.DeepEqual(got.RiskFactors, []string{"Low volume", "3"}) {
		t.Fatalf("unexpected riskFactors %#v", got.RiskFactors)
	}
	if !reflect.DeepEqual(got.KeyObservations, []string{"Break of structure on 1H"}) {
		t.Fatalf("unexpected keyObservations %#v", got.KeyObservations)
	}
}

func TestNormalizeEnumFallbacks(t *testing.T) {
	got := Normalize(`{"recommendation":"strong buy maybe","momentum":"sideways"}`)
	if got.Recommendation != RecommendationWait {
		t.Fatalf("expected WAIT for unknown recommendation, got %q", got.Recommendation)
	}
	if got.Momentum != MomentumNeutral {
		t.Fatalf("expected Neutral for unknown momentum, got %q", got.Momentum)
	}

	got = Normalize(`{"recommendation":" short ","momentum":"Weakening"}`)
	if got.Recommendation != RecommendationSell || got.Momentum != MomentumWeakening {
		t.Fatalf("unexpected mapping: %q %q", got.Recommendation, got.Momentum)
	}
}

func TestNormalizeMomentumPhrasing(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Strengthening", want: MomentumStrengthening},
		{input: " neutral ", want: MomentumNeutral},
		{input: "WEAKENING", want: MomentumWeakening},
		{input: "Losing strength", want: MomentumWeakening},
		{input: "strength fading into resistance", want: MomentumWeakening},
		{input: "bullish strength building", want: MomentumStrengthening},
		{input: "close to regaining strength", want: MomentumStrengthening},
		{input: "flat", want: MomentumNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(`{"momentum":"` + tt.input + `"}`)
			if got.Momentum != tt.want {
				t.Fatalf("momentum %q = %q, want %q", tt.input, got.Momentum, tt.want)
			}
		})
	}
}

func TestNormalizeExcerpt(t *testing.T) {
	long := strings.Repeat("a", 800)
	got := Normalize(long)
	if got.TechnicalSentiment != strings.Repeat("a", 500)+"..." {
		t.Fatalf("unexpected excerpt length %d", len(got.TechnicalSentiment))
	}

	if got := Normalize("   "); got.TechnicalSentiment != "No response received" {
		t.Fatalf("unexpected excerpt for blank input %q", got.TechnicalSentiment)
	}
}

func TestNormalizeIsCompleteAndDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"no json here",
		"```json\n{\"pattern\":\"Double Top\"}\n```",
		`{"riskFactors":null,"keyObservations":[null]}`,
		`{"pattern":{"name":"nested"}}`,
		"{{{{",
	}
	for _, raw := range inputs {
		first := Normalize(raw)
		second := Normalize(raw)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("normalize is not deterministic for %q", raw)
		}

		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(fields) != 22 {
			t.Fatalf("expected 22 fields for %q, got %d", raw, len(fields))
		}
		for key, value := range fields {
			if value == nil {
				t.Fatalf("field %q is null for input %q", key, raw)
			}
			if s, ok := value.(string); ok && s == "" {
				t.Fatalf("field %q is empty for input %q", key, raw)
			}
		}
	}
}
