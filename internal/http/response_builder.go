// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing enveloped JSON
// responses and the mapping from domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Meta    any    `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building API responses.
type JSONResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewJSONResponse creates a new successful response builder with 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload.
func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.envelope.Data = data
	return b
}

// Meta sets response metadata such as pagination or cache state.
func (b *JSONResponseBuilder) Meta(meta any) *JSONResponseBuilder {
	b.envelope.Meta = meta
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.envelope)
}

// ErrorResponse creates a failed response with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	b := NewJSONResponse().Status(statusCode)
	b.envelope.Success = false
	b.envelope.Error = message
	return b
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// FromError maps a service error to a response. Validation failures found
// while reading a request body are reported as 422, everything else that is
// InvalidArgument as 400. Internal details never reach the client.
func FromError(err error, body bool) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		if body {
			return UnprocessableEntityError(err.Error())
		}
		return BadRequestError(err.Error())
	case errors.Is(err, errMalformedBody):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, core.ErrConflict):
		return ConflictError(err.Error())
	case errors.Is(err, core.ErrNotConfigured):
		return ServiceUnavailableError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return InternalServerError("request timed out")
	default:
		return InternalServerError("internal server error")
	}
}
