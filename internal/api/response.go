package api

import (
	"errors"
	"net/http"

	"chartsignal/pkg/chartsignal"
)

// writeAnalysisError writes the client-safe message for err and records the
// full error for the request log.
func writeAnalysisError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var csErr *chartsignal.Error
	if errors.As(err, &csErr) {
		status = mapErrorCodeToHTTPStatus(csErr.Code)
	}
	setErrorMessage(w, err.Error())
	writeError(w, status, chartsignal.ClientMessage(err))
}

// mapErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func mapErrorCodeToHTTPStatus(code chartsignal.ErrorCode) int {
	switch code {
	case chartsignal.ErrCodeInvalidInput, chartsignal.ErrCodeValidation:
		return http.StatusBadRequest
	case chartsignal.ErrCodeConfiguration, chartsignal.ErrCodeUnavailable, chartsignal.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func setErrorMessage(w http.ResponseWriter, message string) {
	if lw, ok := w.(interface{ SetErrorMessage(string) }); ok {
		lw.SetErrorMessage(message)
	}
}
