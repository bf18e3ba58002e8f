package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/internal/scheduler"
	"github.com/smallbiznis/crm/internal/validation"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Errors  []validation.Violation `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return validation.New(field, code, message)
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if verrs, ok := validation.As(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  verrs,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []validation.Violation{
				{
					Field:   validationErrorField(err),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, scheduler.ErrLeaseHeld):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if verrs, ok := validation.As(err); ok {
		if len(verrs) > 0 {
			return "validation_error", verrs[0].Code
		}
		return "validation_error", ""
	}
	if isValidationError(err) {
		return "validation_error", err.Error()
	}
	_, payload := mapError(err)
	return payload.Type, payload.Type
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidThreshold),
		errors.Is(err, productdomain.ErrInvalidRestock),
		errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrInvalidFilterID),
		errors.Is(err, jobrundomain.ErrInvalidRun),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func validationErrorField(err error) string {
	switch {
	case errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrInvalidID):
		return "id"
	case errors.Is(err, productdomain.ErrInvalidThreshold):
		return "threshold"
	case errors.Is(err, productdomain.ErrInvalidRestock):
		return "restock_amount"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "page_token"
	case errors.Is(err, orderdomain.ErrInvalidFilterID):
		return "filter"
	default:
		return "request"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, scheduler.ErrUnknownJob),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
