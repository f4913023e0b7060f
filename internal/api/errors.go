package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/applicator"
	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/integration"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/resolver"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/internal/validation"
)

// APIError represents a structured API error with HTTP status code.
type APIError struct {
	Code       int                    `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	FieldError map[string]string      `json:"field_errors,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// NewAPIError creates a new API error.
func NewAPIError(code int, message string, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Common error constructors
func BadRequestError(message, details string) *APIError {
	return NewAPIError(http.StatusBadRequest, message, details)
}

func NotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Context: map[string]interface{}{"id": id},
	}
}

func ValidationError(message string, fieldErrors map[string]string) *APIError {
	return &APIError{
		Code:       http.StatusBadRequest,
		Message:    message,
		FieldError: fieldErrors,
	}
}

func InternalError(message, details string) *APIError {
	return NewAPIError(http.StatusInternalServerError, message, details)
}

func ConflictError(message, details string) *APIError {
	return NewAPIError(http.StatusConflict, message, details)
}

// engineError maps an engine error to an APIError. resource and id name
// the entity for not-found responses.
func engineError(err error, resource, id string) *APIError {
	var (
		cycle    *resolver.CycleError
		dangling *resolver.DanglingDependencyError
		cme      *applicator.ConcurrentModificationError
		applyErr *applicator.ApplyError
		invalid  *validation.ValidationError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		apiErr := NotFoundError(resource, id)
		apiErr.Details = err.Error()
		return apiErr
	case errors.As(err, &cme):
		apiErr := ConflictError("Concurrent modification", err.Error())
		apiErr.Context = map[string]interface{}{
			"patch":    cme.Patch,
			"target":   cme.Target,
			"expected": cme.Expected,
			"actual":   cme.Actual,
		}
		return apiErr
	case errors.As(err, &cycle):
		apiErr := NewAPIError(http.StatusUnprocessableEntity, "Dependency cycle", err.Error())
		apiErr.Context = map[string]interface{}{"members": cycle.Members}
		return apiErr
	case errors.As(err, &dangling):
		return NewAPIError(http.StatusUnprocessableEntity, "Missing dependency", err.Error())
	case errors.As(err, &invalid):
		return NewAPIError(http.StatusUnprocessableEntity, "Spore validation failed", err.Error())
	case errors.As(err, &applyErr):
		apiErr := NewAPIError(http.StatusUnprocessableEntity, "Patch application failed", err.Error())
		apiErr.Context = map[string]interface{}{"patch": applyErr.Patch, "index": applyErr.Index}
		return apiErr
	case errors.Is(err, patch.ErrInvalidTransition),
		errors.Is(err, patch.ErrDuplicateID),
		errors.Is(err, applicator.ErrNotPending),
		errors.Is(err, applicator.ErrNotApplied):
		return ConflictError("Invalid state", err.Error())
	case errors.Is(err, patch.ErrInvalidPatch),
		errors.Is(err, engine.ErrInvalidSpore),
		errors.Is(err, engine.ErrInvalidGraphData),
		errors.Is(err, conformance.ErrInvalidViolation),
		errors.Is(err, integration.ErrEmptyBatch),
		errors.Is(err, integration.ErrDuplicatePatch),
		errors.Is(err, integration.ErrUnknownTarget),
		errors.Is(err, resolver.ErrDuplicatePatch),
		errors.Is(err, applicator.ErrTargetMismatch):
		return BadRequestError("Invalid request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewAPIError(http.StatusServiceUnavailable, "Target busy", err.Error())
	default:
		return InternalError("Operation failed", err.Error())
	}
}

// HTTPErrorHandler is a custom error handler for Echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	code := http.StatusInternalServerError

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		apiErr = &APIError{
			Code:    code,
			Message: getHTTPMessage(code),
			Details: fmt.Sprintf("%v", he.Message),
		}
	} else if errors.As(err, &apiErr) {
		code = apiErr.Code
	} else {
		apiErr = &APIError{
			Code:    code,
			Message: "Internal server error",
			Details: err.Error(),
		}
	}

	// Don't expose internal errors in production
	if code == http.StatusInternalServerError && !c.Echo().Debug {
		apiErr.Details = "An internal error occurred. Please try again later."
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, apiErr)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

// getHTTPMessage returns a user-friendly message for HTTP status codes.
func getHTTPMessage(code int) string {
	messages := map[int]string{
		http.StatusBadRequest:          "Bad request",
		http.StatusUnauthorized:        "Unauthorized",
		http.StatusForbidden:           "Forbidden",
		http.StatusNotFound:            "Resource not found",
		http.StatusMethodNotAllowed:    "Method not allowed",
		http.StatusConflict:            "Conflict",
		http.StatusUnprocessableEntity: "Unprocessable entity",
		http.StatusTooManyRequests:     "Too many requests",
		http.StatusInternalServerError: "Internal server error",
		http.StatusBadGateway:          "Bad gateway",
		http.StatusServiceUnavailable:  "Service unavailable",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return http.StatusText(code)
}
