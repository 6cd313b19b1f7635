package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chartsignal/pkg/chartsignal"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Provider:   h.analyzer.Provider(),
		Configured: h.analyzer.Configured(),
	})
}

func (h *handler) analyzeChart(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var payload analyzeChartPayload
	if err := decodeJSON(r, &payload); err != nil {
		message := decodeErrorMessage(err)
		setErrorMessage(w, fmt.Sprintf("%s: %v", message, err))
		writeError(w, http.StatusBadRequest, message)
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), chartsignal.AnalysisRequest(payload))
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// preflight answers bare OPTIONS requests; browser preflights are answered by
// the CORS middleware before reaching it.
func (h *handler) preflight(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func decodeErrorMessage(err error) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Sprintf("Request body exceeds %d bytes limit", maxBytesErr.Limit)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "images" {
		return chartsignal.MsgImagesRequired
	}
	return chartsignal.MsgInvalidBody
}
