package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunegate/internal/shared"
)

const maxBodyBytes = 1 << 20

// apiError is an error with an explicit status and client-facing detail.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string { return e.detail }

func newAPIError(status int, detail string) error {
	return &apiError{status: status, detail: detail}
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

// statusFor maps an error to its HTTP status and the detail shown to the client.
// Internal failures never leak their message.
func statusFor(err error) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.detail
	}

	var ve *shared.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error()
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, shared.ErrCredentialInvalid):
		return http.StatusUnauthorized, "Incorrect email or password"
	case errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired"
	case errors.Is(err, shared.ErrTokenMalformed), errors.Is(err, shared.ErrSubjectInactive):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, shared.ErrAccessMissingRefreshPresent):
		return http.StatusUnauthorized, "Missing access token, but refresh token found"
	case errors.Is(err, shared.ErrMissingCredential):
		return http.StatusUnauthorized, "Missing access token"
	case errors.Is(err, shared.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service unavailable"
	case errors.Is(err, shared.ErrExternalService):
		return http.StatusBadGateway, "External service error"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusBadRequest, "Already exists"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

type responder struct {
	logger *log.Logger
}

func (rw *responder) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rw.logger.Error("failed to encode response", "error", err)
	}
}

// error writes err as {"detail": ...}; matches the onError hook of auth.Middleware.
func (rw *responder) error(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if status >= http.StatusInternalServerError {
		rw.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	rw.json(w, status, detail(msg))
}

// decodeJSON reads a JSON body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", shared.ErrValidation, err)
	}
	return shared.ValidateStruct(v)
}
