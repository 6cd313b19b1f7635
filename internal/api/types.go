package api

// analyzeChartPayload mirrors chartsignal.AnalysisRequest on the wire.
type analyzeChartPayload struct {
	Images   []string `json:"images"`
	Image    string   `json:"image"`
	Strategy string   `json:"strategy"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}
