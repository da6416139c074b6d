// Package http exposes the accounting book over a JSON bridge.
//
// This file implements the Builder Pattern for constructing envelope
// responses. Every endpoint answers {"success": bool, "data": ..., "error": ...}
// so that callers can treat all results the same way.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hisab/internal/core"
	"hisab/internal/nepali"
	"hisab/internal/printing"
	"hisab/internal/storage"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResponseBuilder provides a fluent API for building envelope responses.
type ResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewResponse creates a successful response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload of a successful response.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.envelope.Data = v
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Fail turns the response into a failure carrying message.
func (b *ResponseBuilder) Fail(message string) *ResponseBuilder {
	b.envelope.Success = false
	b.envelope.Data = nil
	b.envelope.Error = message
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.envelope); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// OK writes a 200 envelope with data.
func OK(w http.ResponseWriter, data any) {
	NewResponse().Data(data).Write(w)
}

// Created writes a 201 envelope with data.
func Created(w http.ResponseWriter, data any) {
	NewResponse().Status(http.StatusCreated).Data(data).Write(w)
}

// ErrorResponse creates a failed envelope with the given status.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Fail(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, storage.ErrBackupExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, nepali.ErrInvalidDate),
		errors.Is(err, nepali.ErrOutOfRange),
		errors.Is(err, storage.ErrReadOnlyQuery),
		errors.Is(err, storage.ErrUnsupportedStmt),
		errors.Is(err, storage.ErrNotSQLite),
		errors.Is(err, storage.ErrCorruptBackup):
		return http.StatusBadRequest
	case errors.Is(err, printing.ErrPDFUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the failure response for err. Internal errors are
// logged and replaced by a generic message.
func FromError(r *http.Request, err error) *ResponseBuilder {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		return InternalServerError("internal error")
	}
	return ErrorResponse(status, err.Error())
}

// writeError is shorthand for FromError(r, err).Write(w).
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	FromError(r, err).Write(w)
}
