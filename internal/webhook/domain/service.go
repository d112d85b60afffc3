package domain

import (
	"context"
)

type IngestRequest struct {
	// Source names the endpoint the delivery arrived on.
	Source    string
	Payload   []byte
	Signature string
	// Expect restricts the accepted event kind; empty accepts both.
	Expect Kind
}

// SignupLock serializes concurrent deliveries for one email. acquired is
// false when another delivery holds the lock.
type SignupLock interface {
	Acquire(ctx context.Context, email string) (release func(), acquired bool, err error)
}

type Service interface {
	Ingest(ctx context.Context, req IngestRequest) (Outcome, error)
	HandleSignup(ctx context.Context, event NewCustomerSignup) (Outcome, error)
	HandleUpgrade(ctx context.Context, event PartnerUpgrade) (Outcome, error)
	SyncIdentity(ctx context.Context, req IngestRequest) (IdentityOutcome, error)
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
}
