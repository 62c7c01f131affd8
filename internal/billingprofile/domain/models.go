// Package domain contains persistence models for member billing profiles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingProfile maps a member to a gateway-side customer and the billing
// key issued against their card. At most one profile exists per
// (member_id, external_customer_id) pair.
type BillingProfile struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID           snowflake.ID `json:"member_id" gorm:"not null;index:idx_billing_profiles_member_customer,unique"`
	ExternalCustomerID string       `json:"external_customer_id" gorm:"type:text;not null;index:idx_billing_profiles_member_customer,unique"`
	BillingKey         *string      `json:"billing_key,omitempty" gorm:"type:text"`
	PG                 string       `json:"pg" gorm:"type:text"`
	CardBrand          string       `json:"card_brand" gorm:"type:text"`
	CardBin            string       `json:"card_bin" gorm:"type:text"`
	CardLast4          string       `json:"card_last4" gorm:"type:text"`
	Active             bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (BillingProfile) TableName() string { return "billing_profiles" }
