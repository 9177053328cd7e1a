package iamport

import (
	"fmt"
	"net/http"
)

// CodeUnknown is the code reported when a response carries no usable code.
const CodeUnknown = -1

// StatusError is returned by the transport step for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", http.StatusText(e.StatusCode), e.StatusCode)
}

// Unwrap returns [ErrStatus].
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// RequestError is returned for every request the gateway did not accept,
// whether it answered with a non-zero code or with a non-2xx status.
type RequestError struct {
	// Code is the gateway code, or [CodeUnknown].
	Code int
	// Message is the gateway message.
	Message string
	// Result is the parsed response body. It is nil when the body was not JSON.
	Result *Result
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Err is the transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("iamport: code %d", e.Code)
	}

	return fmt.Sprintf("iamport: %s (code %d)", e.Message, e.Code)
}

// Unwrap returns the transport error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// newRequestError builds a RequestError from a parsed response.
func newRequestError(result *Result, cause error) *RequestError {
	return &RequestError{
		Code:       result.Code(),
		Message:    result.Message(),
		Result:     result,
		StatusCode: result.StatusCode(),
		Err:        cause,
	}
}
