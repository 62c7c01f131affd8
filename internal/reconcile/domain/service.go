// Package domain contains the subscription charge reconciliation contracts.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Outcome statuses. Timeout is informational: the invoice stays PENDING and
// either a later trigger or a webhook finishes the job.
const (
	OutcomeOK      = "ok"
	OutcomeFail    = "fail"
	OutcomeTimeout = "TIMEOUT"
)

// ChargeOutcome is what the caller learns about one reconciliation run.
type ChargeOutcome struct {
	Status     string `json:"status"`
	InvoiceID  string `json:"invoice_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	ReceiptURL string `json:"receipt_url,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
}

// Service drives a billing-key charge end to end: schedule at the gateway,
// wait for settlement, poll until terminal, then reconcile the ledger and
// the subscription term.
type Service interface {
	// ChargeAndConfirm charges the member's active subscription for the
	// given plan, reusing a recent PENDING invoice when one exists.
	ChargeAndConfirm(ctx context.Context, memberID snowflake.ID, planCode string, months int) (ChargeOutcome, error)
	// ChargeByBillingKeyAndConfirm runs the flow for a specific invoice.
	ChargeByBillingKeyAndConfirm(ctx context.Context, invoiceID, memberID snowflake.ID, months int) (ChargeOutcome, error)
}

var (
	ErrInvoiceNotPending = errors.New("invoice_not_pending")
	ErrInvoiceNotOwned   = errors.New("invoice_not_owned")
)
