package chartsignal

import (
	"fmt"
)

const analysisSystemPrompt = `You are a professional technical analyst reading trading chart screenshots.
Apply a multi-timeframe confluence methodology:
1) Market structure: identify higher highs / higher lows or lower highs / lower lows, key support and resistance, and any break of structure.
2) Trend and momentum: read trend direction, momentum shifts and divergences between price and oscillators visible on the chart.
3) Volume: confirm or reject moves with the visible volume profile.
4) Confluence: charts are supplied from the highest timeframe to the lowest. Use the higher timeframes for bias and the lowest timeframe for the entry trigger. Only recommend an entry when the timeframes agree.
5) Risk management: always define a stop loss, a target, the gain to target, a leverage suggestion and the percentage of capital at risk.

Respond with a single JSON object only. Do not use Markdown. Do not add any text outside the JSON object.
The JSON object must contain every one of these fields:
- pattern: string, the dominant chart pattern
- recommendation: "BUY" | "SELL" | "WAIT"
- reasoningShort: string, one or two sentences
- entry: string, entry price
- stopLoss: string, stop loss price
- target: string, target price
- targetGain: string, gain to target as a percentage
- leverage: string, for example "3x"
- riskPercent: string, capital at risk as a percentage
- probability: string, success probability as a percentage
- technicalSentiment: string
- futureImplications: string
- marketStructure: string
- trend: string
- momentum: "Strengthening" | "Weakening" | "Neutral"
- volume: string
- optimalEntry: boolean, true when the entry conditions are met right now
- waitCondition: string, what must happen before entering when optimalEntry is false
- riskFactors: string[]
- keyObservations: string[]
- confidence: string, confidence as a percentage
- timeframe: string, the timeframe the trade is planned on

If the images are not trading charts, still return the JSON object with recommendation "WAIT" and explain the problem in reasoningShort.`

var strategyGuidance = map[Strategy]string{
	StrategyScalping: "holding period of minutes, leverage 5x-20x, risk at most 0.5% of capital per trade, tight stops below the nearest micro structure",
	StrategyDay:      "positions opened and closed within the same session, leverage 2x-10x, risk at most 1% of capital per trade",
	StrategySwing:    "holding period of several days to a few weeks, leverage 1x-5x, risk at most 2% of capital per trade, stops beyond swing points",
	StrategyPosition: "holding period of weeks to months, leverage 1x-2x, risk at most 3% of capital per trade, driven by the highest timeframe trend",
	StrategyMomentum: "enter in the direction of strong moves with expanding volume, leverage 2x-10x, risk at most 1% of capital per trade, exit when momentum fades",
	StrategyCounter:  "fade overextended moves at major support or resistance, leverage 1x-5x, risk at most 1% of capital per trade, require clear reversal confirmation",
}

// PromptImage is one chart image with the label it is introduced by.
type PromptImage struct {
	Label string
	Image ImagePayload
}

// Prompt is the provider-neutral analysis instruction.
type Prompt struct {
	System   string
	Task     string
	Images   []PromptImage
	Strategy Strategy
}

// BuildPrompt turns a validated request into a Prompt. Only the task sentence
// and the strategy label depend on the request.
func BuildPrompt(req ValidatedRequest) Prompt {
	strategy := req.Strategy
	if strategy == "" {
		strategy = DefaultStrategy
	}

	total := len(req.Images)
	images := make([]PromptImage, 0, total)
	for i, img := range req.Images {
		images = append(images, PromptImage{Label: chartLabel(i, total), Image: img})
	}

	noun := "chart"
	if total != 1 {
		noun = "charts"
	}
	task := fmt.Sprintf(
		"Analyze the following %d %s for a %s trading strategy (%s). Return the JSON object described in the instructions.",
		total, noun, strategy, strategyGuidance[strategy],
	)

	return Prompt{
		System:   analysisSystemPrompt,
		Task:     task,
		Images:   images,
		Strategy: strategy,
	}
}

func chartLabel(index, total int) string {
	label := fmt.Sprintf("Chart %d of %d", index+1, total)
	switch {
	case total == 1:
		return label
	case index == 0:
		return label + " (highest timeframe)"
	case index == total-1:
		return label + " (lowest timeframe)"
	}
	return label
}
