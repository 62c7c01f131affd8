package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Fail reasons recorded on attempts that never reach the gateway.
const (
	FailReasonForbidden       = "FORBIDDEN"
	FailReasonNoPaymentMethod = "NO_PAYMENT_METHOD"
	FailReasonNoBillingKey    = "NO_BILLING_KEY"
)

// TryPayStatus classifies the outcome of a single orchestrated attempt.
type TryPayStatus string

const (
	TryPayStatusOK      TryPayStatus = "ok"
	TryPayStatusFail    TryPayStatus = "fail"
	TryPayStatusSkipped TryPayStatus = "skipped"
)

// TryPayResult is returned by the orchestrator. Skipped means the invoice
// was no longer PENDING and nothing was done.
type TryPayResult struct {
	Status     TryPayStatus `json:"status"`
	InvoiceID  string       `json:"invoice_id"`
	PaymentID  string       `json:"payment_id,omitempty"`
	ReceiptURL string       `json:"receipt_url,omitempty"`
	FailReason string       `json:"fail_reason,omitempty"`
}

// WebhookPayload is the push notification shape delivered by the gateway.
type WebhookPayload struct {
	PaymentID      string `json:"paymentId"`
	Status         string `json:"status"`
	TransactionUID string `json:"transactionUid"`
	ReceiptURL     string `json:"receiptUrl"`
	FailReason     string `json:"failReason"`
	RawJSON        string `json:"rawJson"`
}

// Service is the synchronous, ownership-checked charge entry point.
//
// TryPay triggers exactly one charge attempt for one invoice. Authorization
// failures do not return an error: a failed ownership check is itself a
// billable-audit event and is recorded as a FAIL attempt.
type Service interface {
	TryPay(ctx context.Context, invoiceID, memberID snowflake.ID) (TryPayResult, error)
	ConfirmByPaymentID(ctx context.Context, paymentID string, amount int64, invoiceID *snowflake.ID) (TryPayResult, error)
}

// WebhookService ingests asynchronous gateway notifications.
type WebhookService interface {
	Handle(ctx context.Context, payload WebhookPayload) error
}

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInvalidPayment = errors.New("invalid_payment")
)
