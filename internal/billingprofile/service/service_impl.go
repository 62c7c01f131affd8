package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  billingprofiledomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  billingprofiledomain.Repository
}

func NewService(p ServiceParam) billingprofiledomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billingprofile.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Upsert creates or refreshes the profile for (member, external customer).
// The merge is additive: blank request fields keep the stored values, so a
// webhook that only carries a card brand never erases the BIN learned from
// an earlier lookup.
func (s *Service) Upsert(ctx context.Context, req billingprofiledomain.UpsertRequest) (*billingprofiledomain.BillingProfile, error) {
	externalCustomerID := strings.TrimSpace(req.ExternalCustomerID)
	if req.MemberID == 0 || externalCustomerID == "" {
		return nil, billingprofiledomain.ErrInvalidCustomer
	}

	var out *billingprofiledomain.BillingProfile
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByMemberAndCustomer(ctx, tx, req.MemberID, externalCustomerID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if existing == nil {
			profile := &billingprofiledomain.BillingProfile{
				ID:                 s.genID.Generate(),
				MemberID:           req.MemberID,
				ExternalCustomerID: externalCustomerID,
				PG:                 strings.TrimSpace(req.PG),
				CardBrand:          strings.TrimSpace(req.CardBrand),
				CardBin:            strings.TrimSpace(req.CardBin),
				CardLast4:          strings.TrimSpace(req.CardLast4),
				Active:             true,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := s.repo.Insert(ctx, tx, profile); err != nil {
				return err
			}
			out = profile
			return nil
		}

		if v := strings.TrimSpace(req.PG); v != "" {
			existing.PG = v
		}
		if v := strings.TrimSpace(req.CardBrand); v != "" {
			existing.CardBrand = v
		}
		if v := strings.TrimSpace(req.CardBin); v != "" {
			existing.CardBin = v
		}
		if v := strings.TrimSpace(req.CardLast4); v != "" {
			existing.CardLast4 = v
		}
		existing.Active = true
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) SetBillingKey(ctx context.Context, profileID snowflake.ID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return billingprofiledomain.ErrInvalidBillingKey
	}

	profile, err := s.repo.FindByID(ctx, s.db, profileID)
	if err != nil {
		return err
	}
	if profile == nil {
		return billingprofiledomain.ErrNotFound
	}
	return s.repo.SetBillingKey(ctx, s.db, profileID, key)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*billingprofiledomain.BillingProfile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, billingprofiledomain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID snowflake.ID) ([]billingprofiledomain.BillingProfile, error) {
	return s.repo.ListByMember(ctx, s.db, memberID)
}

// FindLatestWithKey returns the member's most recent active profile that
// carries a billing key. A member with an active profile but no key gets
// ErrNoBillingKey; a member with no active profile at all gets
// ErrNoBillingProfile.
func (s *Service) FindLatestWithKey(ctx context.Context, memberID snowflake.ID) (*billingprofiledomain.BillingProfile, error) {
	profile, err := s.repo.FindLatestWithKey(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	keyless, err := s.repo.FindLatestActive(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if keyless != nil {
		return nil, billingprofiledomain.ErrNoBillingKey
	}
	return nil, billingprofiledomain.ErrNoBillingProfile
}

func (s *Service) Deactivate(ctx context.Context, memberID, profileID snowflake.ID) error {
	profile, err := s.repo.FindByID(ctx, s.db, profileID)
	if err != nil {
		return err
	}
	if profile == nil {
		return billingprofiledomain.ErrNotFound
	}
	if profile.MemberID != memberID {
		return billingprofiledomain.ErrProfileNotOwned
	}
	return s.repo.SetActive(ctx, s.db, profileID, false)
}
