package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrMissingSecret       = errors.New("webhook_secret_missing")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrMalformedPayload    = errors.New("malformed_payload")
	ErrUnexpectedEventType = errors.New("unexpected_event_type")
	ErrInvalidField        = errors.New("invalid_field")
	ErrDeliveryInProgress  = errors.New("delivery_in_progress")

	ErrAccountCreatedSubscriptionMissing = errors.New("account_created_subscription_missing")
)

// FieldError reports one payload field that failed validation.
type FieldError struct {
	Field string
	Code  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Code)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidField
}

// PartialFailureError is returned when the customer account was written but
// its subscription was not.
type PartialFailureError struct {
	UserID    snowflake.ID
	Completed []string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("account %s created, subscription missing (completed: %s): %v",
		e.UserID, strings.Join(e.Completed, ","), e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrAccountCreatedSubscriptionMissing, e.Err}
}
