package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/gateway"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/providers/email"
	reconciledomain "github.com/smallbiznis/storefront/internal/reconcile/domain"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger
	cfg config.BillingConfig

	clock           clock.Clock
	invoicesvc      invoicedomain.Service
	profilesvc      billingprofiledomain.Service
	subscriptionsvc subscriptiondomain.Service
	gateway         paymentdomain.Gateway
	email           email.Provider

	// sleep is replaced in tests so the poll loop runs on a fake clock
	sleep func(ctx context.Context, d time.Duration) error
}

type ServiceParam struct {
	fx.In

	Log             *zap.Logger
	Config          config.Config
	Clock           clock.Clock
	Invoicesvc      invoicedomain.Service
	Profilesvc      billingprofiledomain.Service
	Subscriptionsvc subscriptiondomain.Service
	Gateway         paymentdomain.Gateway
	Email           email.Provider `optional:"true"`
}

func NewService(p ServiceParam) reconciledomain.Service {
	return &Service{
		log: p.Log.Named("reconcile.service"),
		cfg: p.Config.Billing,

		clock:           p.Clock,
		invoicesvc:      p.Invoicesvc,
		profilesvc:      p.Profilesvc,
		subscriptionsvc: p.Subscriptionsvc,
		gateway:         p.Gateway,
		email:           p.Email,

		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) ChargeAndConfirm(ctx context.Context, memberID snowflake.ID, planCode string, months int) (reconciledomain.ChargeOutcome, error) {
	subscription, err := s.subscriptionsvc.FindActiveByMember(ctx, memberID, planCode)
	if err != nil {
		return reconciledomain.ChargeOutcome{Status: reconciledomain.OutcomeFail}, err
	}

	// a retry inside the reuse window drives the same invoice instead of
	// stacking a second PENDING one for the same charge
	invoice, err := s.invoicesvc.FindReusablePending(ctx, memberID, &subscription.ID, subscription.Amount, subscription.Currency, s.cfg.InvoiceReuseWindow)
	if err != nil {
		return reconciledomain.ChargeOutcome{Status: reconciledomain.OutcomeFail}, err
	}
	if invoice == nil {
		periodStart := subscription.TermEnd
		periodEnd := periodStart.AddDate(0, monthsOrCycle(months, subscription.CycleMonths), 0)
		invoice, err = s.invoicesvc.Create(ctx, invoicedomain.CreateRequest{
			MemberID:       memberID,
			SubscriptionID: &subscription.ID,
			PeriodStart:    &periodStart,
			PeriodEnd:      &periodEnd,
			Amount:         subscription.Amount,
			Currency:       subscription.Currency,
		})
		if err != nil {
			return reconciledomain.ChargeOutcome{Status: reconciledomain.OutcomeFail}, err
		}
	}

	return s.ChargeByBillingKeyAndConfirm(ctx, invoice.ID, memberID, months)
}

// ChargeByBillingKeyAndConfirm schedules the charge a short delay forward
// (the gateway rejects lookups for payments it has not ingested yet), waits
// for settlement, then polls until the gateway reports a terminal state or
// the poll budget runs out.
func (s *Service) ChargeByBillingKeyAndConfirm(ctx context.Context, invoiceID, memberID snowflake.ID, months int) (reconciledomain.ChargeOutcome, error) {
	outcome := reconciledomain.ChargeOutcome{
		Status:    reconciledomain.OutcomeFail,
		InvoiceID: invoiceID.String(),
	}

	invoice, err := s.invoicesvc.GetByID(ctx, invoiceID)
	if err != nil {
		return outcome, err
	}
	if invoice.MemberID != memberID {
		return outcome, reconciledomain.ErrInvoiceNotOwned
	}
	if invoice.Status != invoicedomain.InvoiceStatusPending {
		return outcome, reconciledomain.ErrInvoiceNotPending
	}

	profile, err := s.profilesvc.FindLatestWithKey(ctx, memberID)
	if err != nil {
		return outcome, err
	}

	// the order id is a provisional correlation handle: it binds once so a
	// webhook racing the poll loop can find the invoice, and the terminal
	// write replaces it with the gateway's payment id. A charge retried
	// under a fresh order id still settles through the payment id.
	now := s.clock.Now()
	orderID := paymentdomain.NewOrderID(invoiceID, now)
	if err := s.invoicesvc.AssignExternalUID(ctx, invoiceID, orderID); err != nil {
		return outcome, err
	}

	scheduled := s.gateway.ScheduleBillingKeyCharge(ctx, paymentdomain.BillingKeyCharge{
		BillingKey: *profile.BillingKey,
		OrderID:    orderID,
		CustomerID: profile.ExternalCustomerID,
		OrderName:  fmt.Sprintf("invoice %s", invoiceID.String()),
		Amount:     invoice.Amount,
		Currency:   invoice.Currency,
	}, now.Add(s.cfg.ScheduleDelay))
	if !scheduled.Success {
		return s.settleFailure(ctx, invoice, scheduled.PaymentID, scheduled.TxID, scheduled.FailReason, scheduled.RawJSON, outcome)
	}

	paymentID := scheduled.PaymentID
	if paymentID == "" {
		paymentID = orderID
	}
	txID := scheduled.TxID

	if err := s.sleep(ctx, s.cfg.ScheduleDelay+s.cfg.SettleDelay); err != nil {
		outcome.Status = reconciledomain.OutcomeTimeout
		return outcome, nil
	}

	deadline := s.clock.Now().Add(s.cfg.PollTimeout)
	for {
		lookup := s.gateway.SafeLookup(ctx, txID, paymentID)
		if lookup.TxID != "" {
			txID = lookup.TxID
		}
		if lookup.PaymentID != "" {
			paymentID = lookup.PaymentID
		}

		if lookup.Found && paymentdomain.IsTerminalStatus(lookup.Status) {
			if lookup.Status == paymentdomain.GatewayStatusPaid {
				return s.settleSuccess(ctx, invoice, memberID, months, paymentID, lookup, outcome)
			}
			reason := lookup.FailReason
			if reason == "" {
				reason = lookup.Status
			}
			return s.settleFailure(ctx, invoice, paymentID, txID, reason, lookup.RawJSON, outcome)
		}

		if !s.clock.Now().Before(deadline) {
			break
		}
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			break
		}
	}

	// the gateway never went terminal inside the budget; the invoice stays
	// PENDING and the webhook or a retry completes it later
	s.log.Warn("poll budget exhausted, invoice left pending",
		zap.Int64("invoice_id", int64(invoiceID)),
		zap.String("payment_id", paymentID),
	)
	outcome.Status = reconciledomain.OutcomeTimeout
	outcome.PaymentID = paymentID
	return outcome, nil
}

func (s *Service) settleSuccess(ctx context.Context, invoice *invoicedomain.Invoice, memberID snowflake.ID, months int, paymentID string, lookup paymentdomain.LookupResult, outcome reconciledomain.ChargeOutcome) (reconciledomain.ChargeOutcome, error) {
	applied, err := s.invoicesvc.ApplyOutcome(ctx, invoice.ID, invoicedomain.Outcome{
		Success:      true,
		ExternalUID:  paymentID,
		ExternalTxID: lookup.TxID,
		ReceiptURL:   lookup.ReceiptURL,
		RawResponse:  lookup.RawJSON,
	})
	if err != nil {
		return outcome, err
	}

	// renew only when this call won the transition; a webhook that landed
	// first already did, or will do, nothing more is owed
	if applied && invoice.SubscriptionID != nil {
		if _, err := s.subscriptionsvc.Renew(ctx, *invoice.SubscriptionID, months); err != nil {
			s.log.Error("invoice paid but renewal failed",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Error(err),
			)
			return outcome, err
		}
	}

	s.refreshCardMeta(ctx, memberID, lookup)

	outcome.Status = reconciledomain.OutcomeOK
	outcome.PaymentID = paymentID
	outcome.ReceiptURL = lookup.ReceiptURL
	return outcome, nil
}

func (s *Service) settleFailure(ctx context.Context, invoice *invoicedomain.Invoice, paymentID, txID, reason string, raw []byte, outcome reconciledomain.ChargeOutcome) (reconciledomain.ChargeOutcome, error) {
	if reason == "" {
		reason = "UNKNOWN"
	}
	if _, err := s.invoicesvc.ApplyOutcome(ctx, invoice.ID, invoicedomain.Outcome{
		Success:      false,
		ExternalUID:  paymentID,
		ExternalTxID: txID,
		FailReason:   reason,
		RawResponse:  raw,
	}); err != nil {
		return outcome, err
	}

	s.alertFailure(ctx, invoice, reason)

	outcome.PaymentID = paymentID
	outcome.FailReason = reason
	return outcome, nil
}

// refreshCardMeta opportunistically copies card metadata from the lookup
// into the member's billing profile. Best effort: a failure here never
// fails a paid charge.
func (s *Service) refreshCardMeta(ctx context.Context, memberID snowflake.ID, lookup paymentdomain.LookupResult) {
	meta := gateway.ExtractCardMeta(lookup.RawJSON)
	if meta == nil {
		// scheduled-charge lookups sometimes arrive without the raw body
		meta = &paymentdomain.CardMeta{
			PG:    lookup.PG,
			Brand: lookup.CardBrand,
			Bin:   lookup.CardBin,
			Last4: lookup.CardLast4,
		}
	}
	if meta.PG == "" && meta.Brand == "" && meta.Bin == "" && meta.Last4 == "" {
		return
	}
	profile, err := s.profilesvc.FindLatestWithKey(ctx, memberID)
	if err != nil {
		return
	}
	_, err = s.profilesvc.Upsert(ctx, billingprofiledomain.UpsertRequest{
		MemberID:           memberID,
		ExternalCustomerID: profile.ExternalCustomerID,
		PG:                 meta.PG,
		CardBrand:          meta.Brand,
		CardBin:            meta.Bin,
		CardLast4:          meta.Last4,
	})
	if err != nil {
		s.log.Warn("card metadata refresh failed", zap.Error(err))
	}
}

func (s *Service) alertFailure(ctx context.Context, invoice *invoicedomain.Invoice, reason string) {
	if s.email == nil || s.cfg.AlertEmail == "" {
		return
	}
	subject := fmt.Sprintf("Subscription charge failed for invoice %s", invoice.ID.String())
	body := fmt.Sprintf("<p>Invoice %s (%d %s) failed: %s</p>",
		invoice.ID.String(), invoice.Amount, invoice.Currency, reason)
	if err := s.email.Send(ctx, []string{s.cfg.AlertEmail}, subject, body); err != nil {
		s.log.Warn("failure alert email not sent", zap.Error(err))
	}
}

func monthsOrCycle(months, cycle int) int {
	if months > 0 {
		return months
	}
	if cycle > 0 {
		return cycle
	}
	return 1
}
