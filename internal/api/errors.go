package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/scan"
	"github.com/MJE43/visual-replay-go/internal/scripting"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classifyError maps domain errors onto an HTTP status and error type.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, visuals.ErrEffectNotFound), errors.Is(err, scan.ErrEffectNotFound):
		return http.StatusNotFound, ErrTypeEffectNotFound
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, scan.ErrNotScannable):
		return http.StatusUnprocessableEntity, ErrTypeNotScannable
	case errors.Is(err, visuals.ErrInvalidOutcome), errors.Is(err, visuals.ErrOutcomeMismatch):
		return http.StatusBadRequest, ErrTypeInvalidOutcome
	case errors.Is(err, seeds.ErrModeMismatch),
		errors.Is(err, seeds.ErrWallClockField),
		errors.Is(err, seeds.ErrUnsupportedField),
		errors.Is(err, seeds.ErrAmbiguousField),
		errors.Is(err, seeds.ErrUnknownMode),
		errors.Is(err, seeds.ErrInvalidNamespace),
		errors.Is(err, seeds.ErrUnknownNamespace):
		return http.StatusBadRequest, ErrTypeInvalidSeed
	case errors.Is(err, visuals.ErrInvalidParams),
		errors.Is(err, visuals.ErrNoTimestamp),
		scan.IsClientError(err):
		return http.StatusBadRequest, ErrTypeInvalidParams
	case errors.Is(err, scripting.ErrScript), errors.Is(err, scripting.ErrTooManyDraws):
		return http.StatusUnprocessableEntity, ErrTypeScript
	case errors.Is(err, scripting.ErrTimeout):
		return http.StatusRequestTimeout, ErrTypeTimeout
	case errors.Is(err, render.ErrNondeterministic), errors.Is(err, scripting.ErrNondeterministic):
		return http.StatusInternalServerError, ErrTypeNondeterministic
	case errors.Is(err, render.ErrNoStore), errors.Is(err, scripting.ErrNoStore):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger         *slog.Logger
	securityLogger *SecurityLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, securityLogger *SecurityLogger) *ErrorHandler {
	return &ErrorHandler{
		logger:         logger,
		securityLogger: securityLogger,
	}
}

// HandleError converts err into a structured response. Internal failures
// hide the cause from the client and only log it.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.logError(r, engineErr, http.StatusInternalServerError, nil)
		eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
		return
	}

	status, errType := classifyError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && errType == ErrTypeInternal {
		message = "Internal server error"
	}

	engineErr = NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, engineErr, status, err)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string, extra map[string]any) {
	requestID := middleware.GetReqID(r.Context())

	b := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path)
	for k, v := range extra {
		b.WithContext(k, v)
	}
	engineErr := b.Build()

	eh.securityLogger.LogSecurityEvent(
		requestID,
		"validation_failure",
		message,
		map[string]any{
			"field": field,
			"path":  r.URL.Path,
		},
		r.RemoteAddr,
	)

	eh.logError(r, engineErr, http.StatusBadRequest, nil)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// logError logs the error with a level chosen by its category
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int, cause error) {
	category := GetErrorCategory(engineErr.Type)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs := []any{
		"type", engineErr.Type,
		"category", string(category),
		"status", status,
		"request_id", engineErr.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_ip", r.RemoteAddr,
		"context", eh.securityLogger.sanitizeContext(engineErr.Context),
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	eh.logger.Log(r.Context(), level, engineErr.Message, attrs...)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", engine.Version)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("failed to encode error response", "error", err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", requestID,
					"path", r.URL.Path,
					"method", r.Method,
					"panic", fmt.Sprint(rvr),
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
