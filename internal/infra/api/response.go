package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/infra/logging"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes. The message of a 5xx is
// never shown to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrNoReference),
		errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPlanInactive),
		errors.Is(err, domain.ErrMembershipCancelled),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code := statusFor(err)
	msg := err.Error()
	l := logging.With(r.Context(), logger)
	switch {
	case code == http.StatusInternalServerError:
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	case code == http.StatusBadGateway:
		l.Error().Err(err).Str("path", r.URL.Path).Msg("upstream failed")
		msg = domain.ErrGatewayUnavailable.Error()
	default:
		l.Debug().Err(err).Int("status", code).Msg("request rejected")
	}
	writeJSON(w, code, errorBody{Error: msg})
}
