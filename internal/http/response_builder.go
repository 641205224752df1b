// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and the
// mapping from domain errors to status codes.

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"finsight/internal/api"
	"finsight/internal/core"
	"finsight/internal/export"
	"finsight/internal/insights"
	"finsight/internal/localstate"
	"finsight/internal/log"
	"finsight/internal/store"
)

var (
	// ErrBadRequest marks malformed input caught by the handlers themselves.
	ErrBadRequest = errors.New("bad request")
	// ErrNotConfigured is returned when an optional dependency is absent.
	ErrNotConfigured = errors.New("not configured")
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
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

// Write sends the built response. A body that fails to encode becomes a
// 500 with a generic error document.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	status := b.statusCode
	if err != nil {
		payload = []byte(`{"error":"internal error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

// ErrorBody is the document sent with every error status.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError is sent by the rate limiter.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// validationErrors are input problems detected locally, before any call.
var validationErrors = []error{
	ErrBadRequest,
	store.ErrInvalid,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrInvalidType,
	core.ErrInvalidDate,
	core.ErrEmptyGoalName,
	core.ErrInvalidPriority,
	core.ErrEmptyID,
	localstate.ErrInvalidTheme,
	export.ErrMissingColumn,
}

// StatusFor maps err to a status and error kind. Timeouts are 504 whatever
// wraps them. Backend kinds map as validation and client 400, auth 401,
// not_found 404, network and server 502; anything unrecognised is a 500.
func StatusFor(err error) (int, string) {
	if api.IsTimeout(err) {
		return http.StatusGatewayTimeout, string(api.KindNetwork)
	}
	switch api.KindOf(err) {
	case api.KindValidation:
		return http.StatusBadRequest, string(api.KindValidation)
	case api.KindAuth:
		return http.StatusUnauthorized, string(api.KindAuth)
	case api.KindNotFound:
		return http.StatusNotFound, string(api.KindNotFound)
	case api.KindClient:
		return http.StatusBadRequest, string(api.KindClient)
	case api.KindNetwork:
		return http.StatusBadGateway, string(api.KindNetwork)
	case api.KindServer:
		return http.StatusBadGateway, string(api.KindServer)
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, string(api.KindValidation)
		}
	}
	switch {
	case errors.Is(err, insights.ErrAssistant):
		return http.StatusBadGateway, string(api.KindServer)
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable, ""
	}
	return http.StatusInternalServerError, ""
}

// FromError builds the response for err. Client errors echo the message;
// server-side failures are logged and answered generically.
func FromError(ctx context.Context, err error) *JSONResponseBuilder {
	status, kind := StatusFor(err)
	msg := err.Error()
	if status >= 500 {
		log.LogError(ctx, log.FromContext(ctx), "Request failed", err, "respond",
			log.LogFields{log.FieldStatusCode: status, log.FieldErrorKind: kind})
		msg = genericMessage(status)
	}
	return NewJSONResponse().Status(status).Body(ErrorBody{Error: msg, Kind: kind})
}

func genericMessage(status int) string {
	switch status {
	case http.StatusBadGateway:
		return "backend unavailable"
	case http.StatusServiceUnavailable:
		return "feature not configured"
	case http.StatusGatewayTimeout:
		return "backend timed out"
	default:
		return "internal error"
	}
}
