package faucet

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"faucet-gateway/faucet/domain"
)

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	RetryAfter  int    `json:"retry_after,omitempty"`  // segundos
	AvailableAt int64  `json:"available_at,omitempty"` // unix
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor traduz um erro de domínio para status HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAlreadyInitialized), errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPoolNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrOwnerMismatch),
		errors.Is(err, domain.ErrMintMismatch),
		errors.Is(err, domain.ErrAccountExists):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	if errors.Is(err, errBadSignature) {
		return "invalid_signature"
	}
	return domain.ErrorCode(err)
}

func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: errorCode(err), Message: err.Error()}

	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		body.RetryAfter = retrySeconds(rl.RetryAfter)
		body.AvailableAt = rl.AvailableAt
		w.Header().Set("Retry-After", formatInt(body.RetryAfter))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	if status >= http.StatusInternalServerError {
		log.Error("faucet: request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		// não vaza detalhe interno
		if status == http.StatusInternalServerError {
			body.Message = http.StatusText(status)
		}
	} else {
		log.Debug("faucet: request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}
