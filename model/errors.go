package model

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	ValidationError     ErrorKind = "VALIDATION_ERROR"
	ExtractionFailure   ErrorKind = "EXTRACTION_FAILURE"
	IdentifierNotFound  ErrorKind = "IDENTIFIER_NOT_FOUND"
	UpstreamAuthFailure ErrorKind = "UPSTREAM_AUTH_FAILURE"
	UpstreamRateLimited ErrorKind = "UPSTREAM_RATE_LIMITED"
	UpstreamError       ErrorKind = "UPSTREAM_ERROR"
	RenderError         ErrorKind = "RENDER_ERROR"
)

const genericMessage = "internal server error. contact our support with the reason code for assistance"

// PipelineError is the failure returned by every stage of the report pipeline
// Message is safe to show to the caller, Err may carry upstream details and is only logged
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewPipelineError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}

	return string(e.Kind) + ": " + e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches any PipelineError with the same kind, so errors.Is(err, &PipelineError{Kind: X}) works
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a pipeline failure, or an empty kind for foreign errors
func KindOf(err error) ErrorKind {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}

	return ""
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAPIError builds the response body and status code for a failure
// upstream and render failures stay generic, details are only available in server logs
func NewAPIError(errReason error) (int, APIError) {
	var pErr *PipelineError
	if !errors.As(errReason, &pErr) {
		return http.StatusInternalServerError, APIError{
			Code:    "GENERIC_ERROR",
			Message: genericMessage,
		}
	}

	switch pErr.Kind {
	case ValidationError, ExtractionFailure, IdentifierNotFound:
		return http.StatusBadRequest, APIError{
			Code:    string(pErr.Kind),
			Message: pErr.Message,
		}

	case UpstreamRateLimited:
		return http.StatusBadGateway, APIError{
			Code:    string(pErr.Kind),
			Message: "github rate limit reached or insufficient permissions. wait few minutes and try again",
		}

	case UpstreamAuthFailure, UpstreamError:
		return http.StatusBadGateway, APIError{
			Code:    string(pErr.Kind),
			Message: genericMessage,
		}

	default:
		return http.StatusInternalServerError, APIError{
			Code:    string(pErr.Kind),
			Message: genericMessage,
		}
	}
}
