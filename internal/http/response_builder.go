// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping from
// domain errors onto HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
)

// Error codes carried in the body of every error response.
const (
	CodeValidation  = "validation_error"
	CodeNotFound    = "not_found"
	CodeConflict    = "conflict"
	CodeDependency  = "dependency_exists"
	CodeUnavailable = "store_unavailable"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal_error"
	CodeNotEnabled  = "not_enabled"
)

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body. A nil payload writes no body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// StatusCode returns the status the builder will write.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err, "component", applog.ComponentHTTP)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"encoding failed"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse creates an error response with the standard body.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeValidation, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// ConflictError reports a natural-key collision (create or rename).
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, CodeConflict, message)
}

// DependencyError reports a delete blocked by referencing rows.
func DependencyError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, CodeDependency, message)
}

// ErrorFromErr maps a service error onto a response. Validation, not-found,
// conflict and store-unavailable errors keep their message; anything else
// becomes an opaque 500.
func ErrorFromErr(err error) *JSONResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusBadRequest).
			Data(ErrorBody{Error: ErrorDetail{Code: CodeValidation, Message: ve.Error(), Field: ve.Field}})
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrDuplicateKey):
		return ConflictError(err.Error())
	case errors.Is(err, core.ErrDependencyExists):
		return DependencyError(err.Error())
	case errors.Is(err, core.ErrStoreUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "store unavailable").
			Header("Retry-After", "5")
	default:
		return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
