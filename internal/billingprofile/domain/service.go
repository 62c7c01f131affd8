package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// UpsertRequest carries card metadata returned by the gateway. Blank fields
// never overwrite known values; the merge is additive.
type UpsertRequest struct {
	MemberID           snowflake.ID
	ExternalCustomerID string
	PG                 string
	CardBrand          string
	CardBin            string
	CardLast4          string
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*BillingProfile, error)
	SetBillingKey(ctx context.Context, profileID snowflake.ID, key string) error
	GetByID(ctx context.Context, id snowflake.ID) (*BillingProfile, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]BillingProfile, error)
	// FindLatestWithKey returns the member's most recent active profile
	// holding a billing key. ErrNoBillingKey means an active profile exists
	// without a key; ErrNoBillingProfile means none exists at all.
	FindLatestWithKey(ctx context.Context, memberID snowflake.ID) (*BillingProfile, error)
	Deactivate(ctx context.Context, memberID, profileID snowflake.ID) error
}

var (
	ErrNotFound           = errors.New("billing_profile_not_found")
	ErrInvalidCustomer    = errors.New("invalid_external_customer")
	ErrInvalidBillingKey  = errors.New("invalid_billing_key")
	ErrProfileNotOwned    = errors.New("billing_profile_not_owned")
	ErrNoBillingKey       = errors.New("no_billing_key")
	ErrNoBillingProfile   = errors.New("no_billing_profile")
)
