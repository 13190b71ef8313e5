// Package http serves the question answering and spending insight API.
//
// This file implements the Builder Pattern for JSON responses so every
// handler answers with the same envelope and headers.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendrag/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// errorBody is the envelope of every error response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message, requestID string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, RequestID: requestID})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message, requestID string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, requestID)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message, requestID string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, requestID)
}

// UnavailableError creates a 503 Service Unavailable error response.
func UnavailableError(message, requestID string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message, requestID)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(requestID string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error", requestID)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyQuestion),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, errBadParameter):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoMatch), errors.Is(err, core.ErrBudgetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
