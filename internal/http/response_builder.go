// Package http provides the JSON API server and handlers.
//
// This file implements the builder used to construct JSON responses and
// the single place where domain error kinds turn into status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kharcha/internal/core"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// errorBody is the uniform error envelope the API returns.
type errorBody struct {
	Error string `json:"error"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the response payload.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// ErrorResponse creates an error response with the uniform envelope.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 response. The message is always the
// opaque one; internal detail belongs in the server log, never on the
// wire.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// DomainError maps a known domain error kind to its response. It
// returns nil for errors with no client-facing meaning; those are the
// caller's to log and turn into a 500.
func DomainError(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, core.ErrNoFields):
		return BadRequestError("no fields to update")
	case errors.Is(err, core.ErrInvalidCategory):
		return BadRequestError("invalid category id")
	case errors.Is(err, core.ErrInvalidAmount):
		return BadRequestError("invalid amount")
	case errors.Is(err, core.ErrConflict):
		return BadRequestError("username or email already exists")
	case errors.Is(err, core.ErrBadCredentials):
		return UnauthorizedError("invalid email or password")
	case errors.Is(err, core.ErrEmptyUsername),
		errors.Is(err, core.ErrEmptyEmail),
		errors.Is(err, core.ErrEmptyPassword):
		return BadRequestError("missing required fields")
	default:
		return nil
	}
}
