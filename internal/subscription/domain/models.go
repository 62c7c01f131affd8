// Package domain contains subscription term bookkeeping models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

type BillingMode string

const (
	BillingModeMonthly     BillingMode = "MONTHLY"
	BillingModePrepaidTerm BillingMode = "PREPAID_TERM"
)

// Subscription tracks a member's paid term. TermStart/TermEnd bound the
// currently paid-for window; NextBillAt is when the next charge is due.
type Subscription struct {
	ID               snowflake.ID       `json:"id" gorm:"primaryKey"`
	MemberID         snowflake.ID       `json:"member_id" gorm:"not null;index"`
	PlanCode         string             `json:"plan_code" gorm:"type:text;not null"`
	PriceID          *snowflake.ID      `json:"price_id,omitempty"`
	TermID           *snowflake.ID      `json:"term_id,omitempty"`
	BillingProfileID *snowflake.ID      `json:"billing_profile_id,omitempty"`
	Status           SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	BillingMode      BillingMode        `json:"billing_mode" gorm:"type:text;not null"`
	Amount           int64              `json:"amount" gorm:"not null"`
	Currency         string             `json:"currency" gorm:"type:text;not null"`
	CycleMonths      int                `json:"cycle_months" gorm:"not null"`
	TermStart        time.Time          `json:"term_start" gorm:"not null"`
	TermEnd          time.Time          `json:"term_end" gorm:"not null"`
	NextBillAt       *time.Time         `json:"next_bill_at,omitempty"`
	CanceledAt       *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
