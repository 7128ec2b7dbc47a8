package error_handler

import (
	"net/http"
	"strings"

	"simflow/commons/response"
)

type ErrorCollection struct {
	errors []response.Errors
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		errors: make([]response.Errors, 0),
	}
}

func (ec *ErrorCollection) AddError(code int, message string, data any) *ErrorCollection {
	ec.errors = append(ec.errors, response.Errors{
		ErrorCode: code,
		Message:   message,
		Data:      data,
	})
	return ec
}

func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.errors) > 0
}

func (ec *ErrorCollection) GetErrors() []response.Errors {
	return ec.errors
}

// GetHTTPStatus returns the most severe code in the collection. Codes outside
// the 4xx/5xx range are treated as 500.
func (ec *ErrorCollection) GetHTTPStatus() int {
	if !ec.HasErrors() {
		return http.StatusOK
	}

	status := 0
	for _, err := range ec.errors {
		code := err.ErrorCode
		if code < 400 || code > 599 {
			code = http.StatusInternalServerError
		}
		if code > status {
			status = code
		}
	}
	return status
}

// Detail joins the collected messages into the single string carried by the
// {"detail": ...} envelope.
func (ec *ErrorCollection) Detail() string {
	if !ec.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(ec.errors))
	for _, err := range ec.errors {
		msgs = append(msgs, err.Message)
	}
	return strings.Join(msgs, "; ")
}

// Common error codes
const (
	CodeValidationError     = 400
	CodeForbidden           = 403
	CodeNotFound            = 404
	CodeConflict            = 409
	CodePayloadTooLarge     = 413
	CodeInternalServerError = 500
	CodeBadGateway          = 502
	CodeServiceUnavailable  = 503
	CodeGatewayTimeout      = 504
)

// Single-error shortcuts used by handlers.

func Validation(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeValidationError, message, nil)
}

func Forbidden(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeForbidden, message, nil)
}

func NotFound(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeNotFound, message, nil)
}

func Conflict(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeConflict, message, nil)
}

func PayloadTooLarge(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodePayloadTooLarge, message, nil)
}

func Internal(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeInternalServerError, message, nil)
}

func Unavailable(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeServiceUnavailable, message, nil)
}

func GatewayTimeout(message string) *ErrorCollection {
	return NewErrorCollection().AddError(CodeGatewayTimeout, message, nil)
}
