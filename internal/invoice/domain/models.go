// Package domain contains the invoice ledger models. Invoices are the
// financial source of truth; attempts are the append-only audit trail of
// every charge try against them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusFailed  InvoiceStatus = "FAILED"
)

type AttemptResult string

const (
	AttemptResultSuccess AttemptResult = "SUCCESS"
	AttemptResultFail    AttemptResult = "FAIL"
)

// Invoice rows leave PENDING exactly once. PAID and FAILED are terminal.
type Invoice struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	MemberID       snowflake.ID  `json:"member_id" gorm:"not null;index"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty" gorm:"index"`
	PeriodStart    *time.Time    `json:"period_start,omitempty"`
	PeriodEnd      *time.Time    `json:"period_end,omitempty"`
	Amount         int64         `json:"amount" gorm:"not null"`
	Currency       string        `json:"currency" gorm:"type:text;not null"`
	Status         InvoiceStatus `json:"status" gorm:"type:text;not null;index"`
	ExternalUID    *string       `json:"external_uid,omitempty" gorm:"type:text;index"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Attempt is append-only. Exactly one row per charge attempt; rows are never
// updated or deleted.
type Attempt struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	InvoiceID    snowflake.ID   `json:"invoice_id" gorm:"not null;index"`
	Result       AttemptResult  `json:"result" gorm:"type:text;not null"`
	FailReason   *string        `json:"fail_reason,omitempty" gorm:"type:text"`
	ExternalTxID string         `json:"external_tx_id" gorm:"type:text"`
	ReceiptURL   string         `json:"receipt_url" gorm:"type:text"`
	RawResponse  datatypes.JSON `json:"raw_response,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Attempt) TableName() string { return "payment_attempts" }
