package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  invoicedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  invoicedomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	if req.Amount <= 0 {
		return nil, invoicedomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, invoicedomain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	invoice := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		MemberID:       req.MemberID,
		SubscriptionID: req.SubscriptionID,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         invoicedomain.InvoiceStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) FindByExternalUID(ctx context.Context, uid string) (*invoicedomain.Invoice, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, nil
	}
	return s.repo.FindByExternalUID(ctx, s.db, uid)
}

func (s *Service) FindReusablePending(ctx context.Context, memberID snowflake.ID, subscriptionID *snowflake.ID, amount int64, currency string, window time.Duration) (*invoicedomain.Invoice, error) {
	since := s.clock.Now().Add(-window)
	return s.repo.FindReusablePending(ctx, s.db, memberID, subscriptionID, amount, strings.ToUpper(strings.TrimSpace(currency)), since)
}

func (s *Service) AssignExternalUID(ctx context.Context, id snowflake.ID, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil
	}
	return s.repo.AssignExternalUID(ctx, s.db, id, uid, s.clock.Now())
}

// ApplyOutcome is the only code path that moves an invoice out of PENDING.
// The UPDATE carries the status guard, so two racing callers cannot both
// win: the loser sees zero rows affected and writes no attempt.
func (s *Service) ApplyOutcome(ctx context.Context, id snowflake.ID, outcome invoicedomain.Outcome) (bool, error) {
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		status := invoicedomain.InvoiceStatusFailed
		var paidAt *time.Time
		if outcome.Success {
			status = invoicedomain.InvoiceStatusPaid
			paidAt = &now
		}

		rows, err := s.repo.MarkTerminal(ctx, tx, id, status, outcome.ExternalUID, paidAt, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		attempt := &invoicedomain.Attempt{
			ID:           s.genID.Generate(),
			InvoiceID:    id,
			Result:       invoicedomain.AttemptResultSuccess,
			ExternalTxID: strings.TrimSpace(outcome.ExternalTxID),
			ReceiptURL:   strings.TrimSpace(outcome.ReceiptURL),
			CreatedAt:    now,
		}
		if !outcome.Success {
			attempt.Result = invoicedomain.AttemptResultFail
			if reason := strings.TrimSpace(outcome.FailReason); reason != "" {
				attempt.FailReason = &reason
			}
		}
		if len(outcome.RawResponse) > 0 {
			attempt.RawResponse = datatypes.JSON(outcome.RawResponse)
		}
		if err := s.repo.InsertAttempt(ctx, tx, attempt); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.log.Info("invoice outcome applied",
			zap.Int64("invoice_id", int64(id)),
			zap.Bool("success", outcome.Success),
		)
	}
	return applied, nil
}

// RecordAttempt keeps the audit trail complete for attempts that never
// reached the gateway. The invoice stays PENDING and remains chargeable.
func (s *Service) RecordAttempt(ctx context.Context, id snowflake.ID, failReason string) error {
	now := s.clock.Now()
	attempt := &invoicedomain.Attempt{
		ID:        s.genID.Generate(),
		InvoiceID: id,
		Result:    invoicedomain.AttemptResultFail,
		CreatedAt: now,
	}
	if reason := strings.TrimSpace(failReason); reason != "" {
		attempt.FailReason = &reason
	}
	return s.repo.InsertAttempt(ctx, s.db, attempt)
}

func (s *Service) ListAttempts(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.Attempt, error) {
	return s.repo.ListAttempts(ctx, s.db, invoiceID)
}
