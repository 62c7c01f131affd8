package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	MemberID         snowflake.ID
	PlanCode         string
	PriceID          *snowflake.ID
	TermID           *snowflake.ID
	BillingProfileID *snowflake.ID
	BillingMode      BillingMode
	Amount           int64
	Currency         string
	CycleMonths      int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	FindActiveByMember(ctx context.Context, memberID snowflake.ID, planCode string) (*Subscription, error)
	// Renew shifts the paid term forward by months (CycleMonths when months
	// is zero), anchored at max(TermEnd, now) so early renewals extend and
	// lapsed ones restart from today.
	Renew(ctx context.Context, id snowflake.ID, months int) (*Subscription, error)
	Cancel(ctx context.Context, memberID, id snowflake.ID) error
}

var (
	ErrNotFound        = errors.New("subscription_not_found")
	ErrNotOwned        = errors.New("subscription_not_owned")
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrNotActive       = errors.New("subscription_not_active")
)
