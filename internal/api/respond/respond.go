package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/harshite737-crypto/haste/internal/model"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	}
	WriteJSON(w, statusCode, response)
}

// WriteBadRequest writes a 400 Bad Request response
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteInternalError writes a 500 Internal Server Error response
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteDomainError maps domain errors to status codes. Upstream causes are
// logged, never echoed.
func WriteDomainError(w http.ResponseWriter, err error) {
	var qe model.QuotaExceededError
	switch {
	case errors.Is(err, model.ErrEmptyInput):
		WriteBadRequest(w, "prompt is required")
	case model.IsValidationError(err):
		WriteBadRequest(w, err.Error())
	case errors.As(err, &qe):
		WriteError(w, http.StatusTooManyRequests, qe.Error())
	case errors.Is(err, model.ErrMediaFailed):
		log.Warn().Err(err).Msg("media generation failed")
		WriteError(w, http.StatusBadGateway, "media generation failed")
	case errors.Is(err, model.ErrAllProvidersFailed):
		log.Warn().Err(err).Msg("completion failed")
		WriteError(w, http.StatusBadGateway, "completion providers unavailable")
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	default:
		log.Error().Stack().Err(err).Msg("request failed")
		WriteInternalError(w, "internal error")
	}
}
