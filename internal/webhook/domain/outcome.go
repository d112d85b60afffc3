package domain

import "github.com/bwmarrin/snowflake"

type Result string

const (
	ResultCreated        Result = "created"
	ResultAlreadyExists  Result = "already_exists"
	ResultUpgraded       Result = "upgraded"
	ResultAlreadyPartner Result = "already_partner"
	ResultIdentitySynced Result = "identity_synced"
	ResultIgnored        Result = "ignored"
)

var resultMessages = map[Result]string{
	ResultCreated:        "created",
	ResultAlreadyExists:  "already exists",
	ResultUpgraded:       "upgraded",
	ResultAlreadyPartner: "already partner",
	ResultIdentitySynced: "user.created handled",
}

// Outcome is the success body returned to the webhook sender.
type Outcome struct {
	Kind   Kind   `json:"-"`
	Result Result `json:"-"`

	Message        string       `json:"message"`
	UserID         snowflake.ID `json:"userId"`
	SubscriptionID snowflake.ID `json:"subscriptionId,omitempty"`
}

func NewOutcome(kind Kind, result Result, userID snowflake.ID) Outcome {
	return Outcome{
		Kind:    kind,
		Result:  result,
		Message: resultMessages[result],
		UserID:  userID,
	}
}

// IdentityOutcome answers the identity provider. Received is set, and
// nothing else, for event types that are acknowledged but not handled.
type IdentityOutcome struct {
	Result Result `json:"-"`

	Message  string       `json:"message,omitempty"`
	Received string       `json:"received,omitempty"`
	UserID   snowflake.ID `json:"userId,omitempty"`
}
