package errors

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse converts an error into the API error response. Hints are
// user facing; the raw error string is included for operators. Webhook
// signature failures deliberately carry no verification internals.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}

	detail := ErrorDetail{
		Display:       displayMessage(err),
		InternalError: err.Error(),
		Details:       reportableDetails(err),
	}

	if IsInvalidSignature(err) {
		detail = ErrorDetail{Display: "invalid webhook signature"}
	}

	return ErrorResponse{Success: false, Error: detail}
}

func displayMessage(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) > 0 {
		return hints[0]
	}

	var internal *InternalError
	if errors.As(err, &internal) {
		return internal.Message
	}
	return "something went wrong"
}

func reportableDetails(err error) map[string]any {
	for _, d := range errors.GetSafeDetails(err).SafeDetails {
		payload, ok := strings.CutPrefix(d, "__json__:")
		if !ok {
			continue
		}
		var details map[string]any
		if json.Unmarshal([]byte(payload), &details) == nil {
			return details
		}
	}
	return nil
}
