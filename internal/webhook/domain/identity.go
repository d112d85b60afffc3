package domain

import (
	"encoding/json"
	"strings"

	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
)

const IdentityUserCreated = "user.created"

// IdentityEvent is a user lifecycle event from the identity provider.
type IdentityEvent struct {
	Type string
	// The fields below are only set for user.created.
	IdentityID string
	Email      string
	FullName   *string
}

type identityPayload struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

func NormalizeIdentity(raw []byte) (IdentityEvent, error) {
	var p identityPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return IdentityEvent{}, malformedOrField(err)
	}
	p.Type = strings.TrimSpace(p.Type)
	if p.Type == "" {
		return IdentityEvent{}, ErrUnexpectedEventType
	}
	if p.Type != IdentityUserCreated {
		return IdentityEvent{Type: p.Type}, nil
	}

	event := IdentityEvent{
		Type:       p.Type,
		IdentityID: strings.TrimSpace(p.Data.ID),
		FullName:   joinName(p.Data.FirstName, p.Data.LastName),
	}
	if len(p.Data.EmailAddresses) > 0 {
		event.Email = accountdomain.NormalizeEmail(p.Data.EmailAddresses[0].EmailAddress)
	}

	if event.IdentityID == "" {
		return IdentityEvent{}, &FieldError{Field: "data.id", Code: "required"}
	}
	if err := validate.Var(event.Email, "required,email"); err != nil {
		return IdentityEvent{}, &FieldError{Field: "data.email_addresses", Code: "email"}
	}
	return event, nil
}

// joinName uses both names when present, either one alone, or nil.
func joinName(first, last string) *string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	var name string
	switch {
	case first != "" && last != "":
		name = first + " " + last
	case first != "":
		name = first
	case last != "":
		name = last
	default:
		return nil
	}
	return &name
}
