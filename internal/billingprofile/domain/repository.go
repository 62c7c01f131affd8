package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *BillingProfile) error
	Update(ctx context.Context, db *gorm.DB, profile *BillingProfile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillingProfile, error)
	FindByMemberAndCustomer(ctx context.Context, db *gorm.DB, memberID snowflake.ID, externalCustomerID string) (*BillingProfile, error)
	ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]BillingProfile, error)
	FindLatestWithKey(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*BillingProfile, error)
	FindLatestActive(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*BillingProfile, error)
	SetBillingKey(ctx context.Context, db *gorm.DB, id snowflake.ID, key string) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}
