package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingprofiledomain.Repository {
	return &repo{}
}

const profileColumns = `id, member_id, external_customer_id, billing_key, pg, card_brand,
	 card_bin, card_last4, active, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *billingprofiledomain.BillingProfile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_profiles (
			id, member_id, external_customer_id, billing_key, pg, card_brand,
			card_bin, card_last4, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.MemberID,
		profile.ExternalCustomerID,
		profile.BillingKey,
		profile.PG,
		profile.CardBrand,
		profile.CardBin,
		profile.CardLast4,
		profile.Active,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, profile *billingprofiledomain.BillingProfile) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_profiles
		 SET billing_key = ?, pg = ?, card_brand = ?, card_bin = ?, card_last4 = ?,
		     active = ?, updated_at = ?
		 WHERE id = ?`,
		profile.BillingKey,
		profile.PG,
		profile.CardBrand,
		profile.CardBin,
		profile.CardLast4,
		profile.Active,
		profile.UpdatedAt,
		profile.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingprofiledomain.BillingProfile, error) {
	var profile billingprofiledomain.BillingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM billing_profiles WHERE id = ?`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindByMemberAndCustomer(ctx context.Context, db *gorm.DB, memberID snowflake.ID, externalCustomerID string) (*billingprofiledomain.BillingProfile, error) {
	var profile billingprofiledomain.BillingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM billing_profiles
		 WHERE member_id = ? AND external_customer_id = ?
		 LIMIT 1`,
		memberID,
		externalCustomerID,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]billingprofiledomain.BillingProfile, error) {
	var profiles []billingprofiledomain.BillingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM billing_profiles
		 WHERE member_id = ?
		 ORDER BY created_at DESC`,
		memberID,
	).Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) FindLatestWithKey(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*billingprofiledomain.BillingProfile, error) {
	var profile billingprofiledomain.BillingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM billing_profiles
		 WHERE member_id = ? AND active = ? AND billing_key IS NOT NULL AND billing_key <> ''
		 ORDER BY updated_at DESC, created_at DESC
		 LIMIT 1`,
		memberID,
		true,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindLatestActive(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*billingprofiledomain.BillingProfile, error) {
	var profile billingprofiledomain.BillingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM billing_profiles
		 WHERE member_id = ? AND active = ?
		 ORDER BY updated_at DESC, created_at DESC
		 LIMIT 1`,
		memberID,
		true,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) SetBillingKey(ctx context.Context, db *gorm.DB, id snowflake.ID, key string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_profiles SET billing_key = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		key,
		id,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_profiles SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active,
		id,
	).Error
}
