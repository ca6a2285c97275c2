package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code := statusFor(err)
	detail := err.Error()
	if code == http.StatusInternalServerError {
		detail = "internal error"
	}
	if code >= http.StatusInternalServerError {
		logging.With(r.Context(), logger).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, code, ErrorModel{Detail: detail})
}

// decodeBody reads a JSON request body into dst and answers 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeJSON(w, http.StatusBadRequest, ErrorModel{Detail: "request body is required"})
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorModel{Detail: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
