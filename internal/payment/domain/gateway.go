// Package domain contains the payment orchestration contracts and the
// canonical result shapes returned by the external payment gateway.
package domain

import (
	"context"
	"time"
)

// BillingKeyCharge describes one billing-key charge request at the gateway.
type BillingKeyCharge struct {
	BillingKey string
	OrderID    string
	CustomerID string
	OrderName  string
	Amount     int64
	Currency   string
}

// PayResult is the normalized outcome of a charge or confirm call. Expected
// failure modes (non-2xx, empty body, malformed JSON, timeouts) are folded
// into Success=false with a best-effort FailReason; callers always get a
// value they can record as an attempt.
type PayResult struct {
	Success    bool
	PaymentID  string
	TxID       string
	ReceiptURL string
	FailReason string
	RawJSON    []byte
}

// LookupResult is the normalized outcome of a payment lookup. Found=false
// means the gateway does not know the payment (yet); pollers treat that as
// non-terminal.
type LookupResult struct {
	Found      bool
	Status     string
	TxID       string
	PaymentID  string
	PG         string
	CardBrand  string
	CardBin    string
	CardLast4  string
	BillingKey string
	ReceiptURL string
	FailReason string
	RawJSON    []byte
}

// CardMeta is card metadata extracted from a gateway response.
type CardMeta struct {
	PG         string
	Brand      string
	Bin        string
	Last4      string
	BillingKey string
}

// Gateway abstracts the external payment gateway. Implementations never
// return an error for expected failure modes; they normalize everything
// into the result value.
type Gateway interface {
	PayByBillingKey(ctx context.Context, req BillingKeyCharge) PayResult
	ScheduleBillingKeyCharge(ctx context.Context, req BillingKeyCharge, at time.Time) PayResult
	ConfirmPayment(ctx context.Context, paymentID string, amount int64) PayResult
	SafeLookup(ctx context.Context, txID, paymentID string) LookupResult
}

// Terminal gateway payment statuses.
const (
	GatewayStatusPaid      = "PAID"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusCancelled = "CANCELLED"
)

// IsTerminalStatus reports whether a lookup status ends the poll loop.
func IsTerminalStatus(status string) bool {
	switch status {
	case GatewayStatusPaid, GatewayStatusFailed, GatewayStatusCancelled:
		return true
	default:
		return false
	}
}
