// Package webhook ingests asynchronous payment notifications. The gateway
// retries deliveries and may push events for payments this system never
// initiated, so the handler is idempotent and quiet about strangers.
package webhook

import (
	"context"
	"strings"

	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger

	invoicesvc invoicedomain.Service
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Invoicesvc invoicedomain.Service
}

func NewService(p ServiceParam) paymentdomain.WebhookService {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		invoicesvc: p.Invoicesvc,
	}
}

// Handle converges a pushed payment event onto the invoice ledger. Unknown
// payment ids are dropped without error; a late or duplicate delivery for an
// already-terminal invoice is absorbed by ApplyOutcome.
func (s *Service) Handle(ctx context.Context, payload paymentdomain.WebhookPayload) error {
	paymentID := strings.TrimSpace(payload.PaymentID)
	if paymentID == "" {
		return paymentdomain.ErrInvalidPayload
	}

	invoice, err := s.invoicesvc.FindByExternalUID(ctx, paymentID)
	if err != nil {
		return err
	}
	if invoice == nil {
		s.log.Info("webhook for unknown payment dropped", zap.String("payment_id", paymentID))
		return nil
	}

	success := strings.EqualFold(strings.TrimSpace(payload.Status), paymentdomain.GatewayStatusPaid)
	outcome := invoicedomain.Outcome{
		Success:      success,
		ExternalUID:  paymentID,
		ExternalTxID: strings.TrimSpace(payload.TransactionUID),
		ReceiptURL:   strings.TrimSpace(payload.ReceiptURL),
		FailReason:   strings.TrimSpace(payload.FailReason),
	}
	if payload.RawJSON != "" {
		outcome.RawResponse = []byte(payload.RawJSON)
	}
	if !success && outcome.FailReason == "" {
		outcome.FailReason = strings.ToUpper(strings.TrimSpace(payload.Status))
	}

	applied, err := s.invoicesvc.ApplyOutcome(ctx, invoice.ID, outcome)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info("webhook applied to invoice",
			zap.String("payment_id", paymentID),
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.Bool("success", success),
		)
	}
	return nil
}
