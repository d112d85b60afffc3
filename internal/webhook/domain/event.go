package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
)

type Kind string

const (
	KindUserSignup    Kind = "user_signup"
	KindPartnerSignup Kind = "partner_signup"
)

// Event is a normalized, validated webhook event.
type Event interface {
	Kind() Kind
	// Key is the normalized email of the account the event applies to.
	Key() string
}

type NewCustomerSignup struct {
	Email         string
	FullName      string
	ReferrerEmail string
	SetupAmount   decimal.Decimal
	MonthlyAmount decimal.Decimal
	// Metadata is the original event document, stored on the account.
	Metadata map[string]any
}

func (NewCustomerSignup) Kind() Kind    { return KindUserSignup }
func (e NewCustomerSignup) Key() string { return e.Email }

type PartnerUpgrade struct {
	Email string
}

func (PartnerUpgrade) Kind() Kind    { return KindPartnerSignup }
func (e PartnerUpgrade) Key() string { return e.Email }

type envelope struct {
	Event string `json:"event"`
}

type signupPayload struct {
	Email         string          `json:"email" validate:"required,email,max=254"`
	FullName      string          `json:"full_name" validate:"required,max=200"`
	ReferrerEmail string          `json:"referrer_email" validate:"omitempty,email,max=254"`
	SetupAmount   json.RawMessage `json:"setup_amount"`
	MonthlyAmount json.RawMessage `json:"monthly_amount"`
}

// MaxAmount is the largest value the NUMERIC(14,2) amount columns hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

type upgradePayload struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize parses a raw, already authenticated body into a typed event.
func Normalize(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedPayload
	}

	switch Kind(env.Event) {
	case KindUserSignup:
		return normalizeSignup(raw)
	case KindPartnerSignup:
		return normalizeUpgrade(raw)
	default:
		return nil, ErrUnexpectedEventType
	}
}

func normalizeSignup(raw []byte) (Event, error) {
	var p signupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, malformedOrField(err)
	}
	p.Email = accountdomain.NormalizeEmail(p.Email)
	p.FullName = strings.TrimSpace(p.FullName)
	p.ReferrerEmail = accountdomain.NormalizeEmail(p.ReferrerEmail)

	if err := validateStruct(p); err != nil {
		return nil, err
	}
	setup, err := parseAmount("setup_amount", p.SetupAmount)
	if err != nil {
		return nil, err
	}
	monthly, err := parseAmount("monthly_amount", p.MonthlyAmount)
	if err != nil {
		return nil, err
	}

	metadata, err := decodeMetadata(raw)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	return NewCustomerSignup{
		Email:         p.Email,
		FullName:      p.FullName,
		ReferrerEmail: p.ReferrerEmail,
		SetupAmount:   setup,
		MonthlyAmount: monthly,
		Metadata:      metadata,
	}, nil
}

// parseAmount accepts only a JSON number between zero and MaxAmount.
func parseAmount(field string, raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, &FieldError{Field: field, Code: "required"}
	}
	if raw[0] == '"' {
		return decimal.Zero, &FieldError{Field: field, Code: "type"}
	}
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, &FieldError{Field: field, Code: "type"}
	}
	if amount.IsNegative() {
		return decimal.Zero, &FieldError{Field: field, Code: "min"}
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, &FieldError{Field: field, Code: "max"}
	}
	return amount, nil
}

func normalizeUpgrade(raw []byte) (Event, error) {
	var p upgradePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, malformedOrField(err)
	}
	p.Email = accountdomain.NormalizeEmail(p.Email)
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	return PartnerUpgrade{Email: p.Email}, nil
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &FieldError{Field: fieldErrs[0].Field(), Code: fieldErrs[0].Tag()}
	}
	return ErrMalformedPayload
}

// malformedOrField reports a type mismatch on a known field as a field error.
func malformedOrField(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &FieldError{Field: typeErr.Field, Code: "type"}
	}
	return ErrMalformedPayload
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
