package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	invitationdomain "github.com/smallbiznis/referrals/internal/invitation/domain"
	referraldomain "github.com/smallbiznis/referrals/internal/referral/domain"
	subscriptiondomain "github.com/smallbiznis/referrals/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"github.com/smallbiznis/referrals/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	UserID  snowflake.ID      `json:"userId,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
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
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *webhookdomain.FieldError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fieldErr.Field,
					Code:    fieldErr.Code,
					Message: fieldErrorMessage(fieldErr.Code),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	// Checked before persistence errors: a partial failure wraps one.
	var partial *webhookdomain.PartialFailureError
	if errors.As(err, &partial) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "partial_failure",
			Message: "account created but subscription was not recorded",
			UserID:  partial.UserID,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	case errors.Is(err, webhookdomain.ErrDeliveryInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "a delivery for this email is already in progress; retry later and it resolves as already exists",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, dbpkg.ErrPersistence):
		return http.StatusInternalServerError, errorPayload{
			Type:    "persistence_error",
			Message: "failed to persist the event, retry the delivery",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, http.StatusText(status)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, webhookdomain.ErrMalformedPayload),
		errors.Is(err, webhookdomain.ErrUnexpectedEventType),
		errors.Is(err, webhookdomain.ErrInvalidField),
		errors.Is(err, accountdomain.ErrAdminAccount),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidID),
		errors.Is(err, accountdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrInvalidRequest),
		errors.Is(err, subscriptiondomain.ErrInvalidAmount),
		errors.Is(err, commissiondomain.ErrInvalidPartner),
		errors.Is(err, commissiondomain.ErrInvalidRequest),
		errors.Is(err, referraldomain.ErrInvalidDepth),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isInvitationValidationError(err):
		return true
	default:
		return false
	}
}

func isInvitationValidationError(err error) bool {
	switch {
	case errors.Is(err, invitationdomain.ErrAlreadyCustomer),
		errors.Is(err, invitationdomain.ErrAlreadyInvited),
		errors.Is(err, invitationdomain.ErrNotPartner),
		errors.Is(err, invitationdomain.ErrInvalidFullName),
		errors.Is(err, invitationdomain.ErrInvalidEmail),
		errors.Is(err, invitationdomain.ErrInvalidPhone):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode returns the sentinel's own snake_case text.
func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		webhookdomain.ErrMalformedPayload,
		webhookdomain.ErrUnexpectedEventType,
		accountdomain.ErrAdminAccount,
		pagination.ErrInvalidPageToken,
		invitationdomain.ErrAlreadyCustomer,
		invitationdomain.ErrAlreadyInvited,
		invitationdomain.ErrNotPartner,
		invitationdomain.ErrInvalidFullName,
		invitationdomain.ErrInvalidEmail,
		invitationdomain.ErrInvalidPhone,
		referraldomain.ErrInvalidDepth,
		commissiondomain.ErrInvalidPartner,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "malformed_payload":
		return "payload"
	case "unexpected_event_type":
		return "event"
	case "admin_account", "already_customer", "already_invited":
		return "email"
	case "not_partner", "invalid_partner":
		return "partner_id"
	case "invalid_page_token":
		return "page_token"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "malformed_payload":
		return "payload is not a valid JSON event"
	case "unexpected_event_type":
		return "event type is not accepted here"
	case "admin_account":
		return "admin accounts cannot be promoted"
	case "already_customer":
		return "this email already belongs to an account"
	case "already_invited":
		return "this email was already invited"
	case "not_partner":
		return "account is not a partner"
	default:
		return "invalid value"
	}
}

func fieldErrorMessage(code string) string {
	switch code {
	case "required":
		return "field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must not be negative"
	case "type":
		return "has the wrong type"
	default:
		return "invalid value"
	}
}
