package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	planCode := strings.TrimSpace(req.PlanCode)
	if planCode == "" {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	if req.Amount <= 0 {
		return nil, subscriptiondomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, subscriptiondomain.ErrInvalidCurrency
	}

	months := req.CycleMonths
	if months <= 0 {
		months = 1
	}
	mode := req.BillingMode
	if mode == "" {
		mode = subscriptiondomain.BillingModeMonthly
	}

	// the new subscription starts with a zero-length term: no coverage is
	// granted until the first charge settles and Renew extends the window
	now := s.clock.Now()
	subscription := &subscriptiondomain.Subscription{
		ID:               s.genID.Generate(),
		MemberID:         req.MemberID,
		PlanCode:         planCode,
		PriceID:          req.PriceID,
		TermID:           req.TermID,
		BillingProfileID: req.BillingProfileID,
		Status:           subscriptiondomain.SubscriptionStatusActive,
		BillingMode:      mode,
		Amount:           req.Amount,
		Currency:         currency,
		CycleMonths:      months,
		TermStart:        now,
		TermEnd:          now,
		NextBillAt:       &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return subscription, nil
}

func (s *Service) FindActiveByMember(ctx context.Context, memberID snowflake.ID, planCode string) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindActiveByMember(ctx, s.db, memberID, strings.TrimSpace(planCode))
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return subscription, nil
}

// Renew extends the paid term after a successful charge. A member who pays
// before the term lapses keeps their remaining days; one who pays after a
// lapse starts the new window from now.
func (s *Service) Renew(ctx context.Context, id snowflake.ID, months int) (*subscriptiondomain.Subscription, error) {
	var out *subscriptiondomain.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrNotFound
		}
		if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
			return subscriptiondomain.ErrNotActive
		}

		if months <= 0 {
			months = subscription.CycleMonths
		}
		now := s.clock.Now()
		anchor := subscription.TermEnd
		if now.After(anchor) {
			anchor = now
		}
		newEnd := anchor.AddDate(0, months, 0)

		subscription.TermStart = anchor
		subscription.TermEnd = newEnd
		subscription.NextBillAt = &newEnd
		subscription.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		out = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription renewed",
		zap.Int64("subscription_id", int64(out.ID)),
		zap.Time("term_end", out.TermEnd),
	)
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, memberID, id snowflake.ID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrNotFound
		}
		if subscription.MemberID != memberID {
			return subscriptiondomain.ErrNotOwned
		}
		if subscription.Status == subscriptiondomain.SubscriptionStatusCanceled {
			return nil
		}

		now := s.clock.Now()
		subscription.Status = subscriptiondomain.SubscriptionStatusCanceled
		subscription.CanceledAt = &now
		subscription.NextBillAt = nil
		subscription.UpdatedAt = now
		return s.repo.Update(ctx, tx, subscription)
	})
}
