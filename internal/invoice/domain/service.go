package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	MemberID       snowflake.ID
	SubscriptionID *snowflake.ID
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	Amount         int64
	Currency       string
}

// Outcome is the normalized result of one charge attempt, regardless of
// whether it arrived via direct charge, poll or webhook.
type Outcome struct {
	Success      bool
	ExternalUID  string
	ExternalTxID string
	ReceiptURL   string
	FailReason   string
	RawResponse  []byte
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	FindByExternalUID(ctx context.Context, uid string) (*Invoice, error)
	// FindReusablePending returns a recent PENDING invoice for the same
	// member, subscription, amount and currency, or nil.
	FindReusablePending(ctx context.Context, memberID snowflake.ID, subscriptionID *snowflake.ID, amount int64, currency string, window time.Duration) (*Invoice, error)
	// AssignExternalUID binds the gateway payment id to the invoice. Set
	// once: an already-bound invoice keeps its first uid.
	AssignExternalUID(ctx context.Context, id snowflake.ID, uid string) error
	// ApplyOutcome moves a PENDING invoice to its terminal state and writes
	// the attempt row in the same transaction. When the invoice already left
	// PENDING it reports applied=false and writes nothing; duplicate
	// deliveries are expected, not errors.
	ApplyOutcome(ctx context.Context, id snowflake.ID, outcome Outcome) (applied bool, err error)
	// RecordAttempt appends a failed attempt without touching invoice
	// status, for attempts rejected before reaching the gateway.
	RecordAttempt(ctx context.Context, id snowflake.ID, failReason string) error
	ListAttempts(ctx context.Context, invoiceID snowflake.ID) ([]Attempt, error)
}

var (
	ErrNotFound        = errors.New("invoice_not_found")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
