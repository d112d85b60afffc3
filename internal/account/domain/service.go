package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateCustomerRequest struct {
	Email         string
	FullName      string
	ReferredBy    *snowflake.ID
	ReferrerEmail *string
	Metadata      map[string]any
}

type SyncIdentityRequest struct {
	IdentityID string
	Email      string
	FullName   *string
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Account, error)
	PromoteToPartner(ctx context.Context, id snowflake.ID) (Account, error)
	SyncIdentity(ctx context.Context, req SyncIdentityRequest) (Account, error)
	ListReferredBy(ctx context.Context, referrerIDs []snowflake.ID) ([]Account, error)
	ListByIDs(ctx context.Context, ids []snowflake.ID) ([]Account, error)
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrAccountExists  = errors.New("account_exists")
	ErrAdminAccount   = errors.New("admin_account")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidRequest = errors.New("invalid_request")
)
