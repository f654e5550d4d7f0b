package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential and session errors
	ErrCredentialInvalid           = fmt.Errorf("incorrect email or password")
	ErrTokenExpired                = fmt.Errorf("token has expired")
	ErrTokenMalformed              = fmt.Errorf("could not validate credentials")
	ErrSubjectInactive             = fmt.Errorf("account is unknown or inactive")
	ErrMissingCredential           = fmt.Errorf("missing access token")
	ErrAccessMissingRefreshPresent = fmt.Errorf("missing access token, but refresh token found")

	// Request governance errors
	ErrRateLimitExceeded = fmt.Errorf("too many requests")
	ErrStoreUnavailable  = fmt.Errorf("counter store unavailable")

	// Upstream provider errors
	ErrExternalService = fmt.Errorf("external service error")
	ErrUnknownProvider = fmt.Errorf("unknown provider")

	// Persistence errors
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("already exists")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ExternalServiceError is returned by provider adapters for every upstream failure:
// transport errors, timeouts, non-success statuses and unexpected payload shapes.
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

// NewExternalServiceError wraps err as an [ExternalServiceError] for the named provider.
func NewExternalServiceError(provider, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Provider: provider, Op: op, Err: err}
}

func (e *ExternalServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Provider, e.Op)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrExternalService].
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}

// ValidationError carries per-field validation messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is reports whether target is [ErrValidation].
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a [ValidationError] for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsExternal reports whether err originated at a provider boundary.
func IsExternal(err error) bool {
	return errors.Is(err, ErrExternalService)
}
