package httpclient

import (
	goerrors "errors"
	"fmt"

	"github.com/platformhq/licensing/internal/errors"
)

// Error is returned for non-2xx responses. The response body is kept
// so callers can surface endpoint-specific failure detail.
type Error struct {
	*errors.InternalError
	StatusCode int
	Response   []byte
}

// NewError builds an Error for the given status code and body
func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: errors.New(errors.ErrCodeHTTPClient, fmt.Sprintf("http request failed with status %d", statusCode)),
		StatusCode:    statusCode,
		Response:      response,
	}
}

func (e *Error) Error() string {
	return e.InternalError.Error()
}

func (e *Error) Unwrap() error {
	return e.InternalError.Unwrap()
}

// IsHTTPError extracts an *Error from the chain when present
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
