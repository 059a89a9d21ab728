package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/code"
	eventdomain "github.com/smallbiznis/referral/internal/event/domain"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	"github.com/smallbiznis/referral/internal/redirect"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/referral/internal/reward/domain"
	widgetdomain "github.com/smallbiznis/referral/internal/widget/domain"
	"gorm.io/gorm"
)

type ValidationError = eventdomain.FieldError

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrProductRequired    = errors.New("product_required")
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
		c.AbortWithStatusJSON(status, payload)
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
	return eventdomain.NewValidationError(field, code, message)
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *eventdomain.ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: "validation error",
			Details: vErr.Errors,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: "validation error",
			Details: []ValidationError{{
				Field:   validationErrorField(err),
				Code:    validationErrorCode(err),
				Message: validationErrorMessage(err),
			}},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrInvalidKey),
		widgetdomain.IsAuthError(err):
		return http.StatusUnauthorized, errorResponse{
			Error:   "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrProductRequired),
		errors.Is(err, apikeydomain.ErrInvalidProduct),
		errors.Is(err, auditdomain.ErrInvalidProduct),
		errors.Is(err, eventdomain.ErrProductMismatch):
		return http.StatusForbidden, errorResponse{
			Error:   "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, programdomain.ErrNoActiveProgram):
		return http.StatusBadRequest, errorResponse{
			Error:   "no_active_program",
			Message: "product has no active program",
		}
	case errors.Is(err, programdomain.ErrWidgetConfigNotFound):
		return http.StatusNotFound, errorResponse{
			Error:   "widget_config_not_found",
			Message: "widget config not found",
		}
	case errors.Is(err, redirect.ErrLinkNotFound),
		errors.Is(err, referraldomain.ErrLinkNotFound):
		return http.StatusNotFound, errorResponse{
			Error:   "link_not_found",
			Message: "link not found",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{
			Error:   "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, code.ErrExhausted),
		errors.Is(err, referraldomain.ErrLinkAllocationExhausted):
		return http.StatusInternalServerError, errorResponse{
			Error:   "exhausted_retry",
			Message: "allocation attempts exhausted, retry the request",
		}
	case errors.Is(err, productdomain.ErrRedirectNotConfigured):
		return http.StatusInternalServerError, errorResponse{
			Error:   "redirect_not_configured",
			Message: "product redirect url is not configured",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{
			Error:   "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, eventdomain.ErrMalformedJSON),
		errors.Is(err, widgetdomain.ErrInvalidProductID),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidScope),
		errors.Is(err, apikeydomain.ErrInvalidKeyID),
		errors.Is(err, participantdomain.ErrInvalidExternalID),
		errors.Is(err, programdomain.ErrProgramProductMismatch),
		errors.Is(err, programdomain.ErrInvalidStatus),
		errors.Is(err, rewarddomain.ErrInvalidParticipant):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, programdomain.ErrNotFound),
		errors.Is(err, participantdomain.ErrNotFound),
		errors.Is(err, referraldomain.ErrNotFound),
		errors.Is(err, referraldomain.ErrCodeNotFound),
		errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, eventdomain.ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(err error) string {
	switch {
	case errors.Is(err, eventdomain.ErrMalformedJSON), errors.Is(err, ErrInvalidRequest):
		return "body"
	case errors.Is(err, widgetdomain.ErrInvalidProductID):
		return "productId"
	case errors.Is(err, apikeydomain.ErrInvalidName):
		return "name"
	case errors.Is(err, apikeydomain.ErrInvalidScope):
		return "scopes"
	case errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return "keyId"
	case errors.Is(err, programdomain.ErrProgramProductMismatch):
		return "programId"
	case errors.Is(err, programdomain.ErrInvalidStatus):
		return "status"
	default:
		return "request"
	}
}

func validationErrorMessage(err error) string {
	switch {
	case errors.Is(err, eventdomain.ErrMalformedJSON):
		return "request body is not valid JSON"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code recorded on the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadRequest && payload.Error == "validation_error":
		return "validation_error", validationErrorCode(err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth_error", err.Error()
	case status == http.StatusNotFound:
		return "not_found", payload.Error
	case status == http.StatusTooManyRequests:
		return "rate_limited", payload.Error
	case payload.Error == "exhausted_retry":
		return "exhausted_retry", err.Error()
	default:
		return "internal_error", payload.Error
	}
}
