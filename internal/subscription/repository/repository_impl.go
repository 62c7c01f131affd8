package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, member_id, plan_code, price_id, term_id, billing_profile_id,
	 status, billing_mode, amount, currency, cycle_months, term_start, term_end,
	 next_bill_at, canceled_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, member_id, plan_code, price_id, term_id, billing_profile_id,
			status, billing_mode, amount, currency, cycle_months, term_start, term_end,
			next_bill_at, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.MemberID,
		subscription.PlanCode,
		subscription.PriceID,
		subscription.TermID,
		subscription.BillingProfileID,
		subscription.Status,
		subscription.BillingMode,
		subscription.Amount,
		subscription.Currency,
		subscription.CycleMonths,
		subscription.TermStart,
		subscription.TermEnd,
		subscription.NextBillAt,
		subscription.CanceledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET billing_profile_id = ?, status = ?, term_start = ?, term_end = ?,
		     next_bill_at = ?, canceled_at = ?, updated_at = ?
		 WHERE id = ?`,
		subscription.BillingProfileID,
		subscription.Status,
		subscription.TermStart,
		subscription.TermEnd,
		subscription.NextBillAt,
		subscription.CanceledAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindActiveByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID, planCode string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE member_id = ? AND plan_code = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		memberID,
		planCode,
		subscriptiondomain.SubscriptionStatusActive,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}
