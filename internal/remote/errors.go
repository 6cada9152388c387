package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/simp-lee/lendpanel/internal/domain"
)

// ErrorClass classifies a failed call to the lending API.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a body that is not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError carries the details of a failed API call.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lending api %s error (status %d) on %s: %s: %v",
			e.Class, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("lending api %s error (status %d) on %s: %s",
		e.Class, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// toAppError wraps an APIError into the domain error the handlers understand.
func toAppError(apiErr *APIError) error {
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewAppError(domain.CodeUnauthorized, "session expired, please sign in again", apiErr)
	case http.StatusNotFound:
		return domain.NewAppError(domain.CodeNotFound, "record not found", apiErr)
	}
	return domain.NewAppError(domain.CodeUpstream, "lending api request failed", apiErr)
}

// ClassOf returns the error class of err, or "" when err carries no APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}
