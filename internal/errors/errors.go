package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the domain. Callers classify failures by marking
// errors with one of these via the builder and matching with errors.Is.
var (
	ErrNotFound         = newSentinel(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = newSentinel(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation       = newSentinel(ErrCodeValidation, "validation error")
	ErrInvalidOperation = newSentinel(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied = newSentinel(ErrCodePermissionDenied, "permission denied")
	ErrInvalidSignature = newSentinel(ErrCodeInvalidSignature, "invalid signature")
	ErrLimitExceeded    = newSentinel(ErrCodeLimitExceeded, "limit exceeded")
	ErrProcessor        = newSentinel(ErrCodeProcessor, "payment processor error")
	ErrDatabase         = newSentinel(ErrCodeDatabase, "database error")
	ErrHTTPClient       = newSentinel(ErrCodeHTTPClient, "http client error")
	ErrSystem           = newSentinel(ErrCodeSystemError, "system error")

	// maps sentinel errors to http status codes for the API layer
	statusCodeMap = map[error]int{
		ErrNotFound:         http.StatusNotFound,
		ErrAlreadyExists:    http.StatusConflict,
		ErrValidation:       http.StatusBadRequest,
		ErrInvalidOperation: http.StatusBadRequest,
		ErrPermissionDenied: http.StatusForbidden,
		ErrInvalidSignature: http.StatusBadRequest,
		ErrLimitExceeded:    http.StatusPaymentRequired,
		ErrProcessor:        http.StatusBadGateway,
		ErrDatabase:         http.StatusInternalServerError,
		ErrHTTPClient:       http.StatusInternalServerError,
		ErrSystem:           http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeLimitExceeded    = "limit_exceeded"
	ErrCodeProcessor        = "processor_error"
	ErrCodeDatabase         = "database_error"
	ErrCodeHTTPClient       = "http_client_error"
	ErrCodeSystemError      = "system_error"
)

// InternalError is the sentinel error type
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches by error code so marked errors compare equal to their sentinel
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func newSentinel(code string, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

// New creates a typed error with the given code and message
func New(code string, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPStatusFromErr resolves the HTTP status code for an error, defaulting
// to 500 for anything unclassified.
func HTTPStatusFromErr(err error) int {
	for sentinel, code := range statusCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidSignature checks if an error is a webhook signature failure
func IsInvalidSignature(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

// IsLimitExceeded checks if an error is a usage or entitlement limit failure
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

// IsProcessor checks if an error came from the external payment processor
func IsProcessor(err error) bool {
	return errors.Is(err, ErrProcessor)
}
