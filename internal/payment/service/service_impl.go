package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger

	clock      clock.Clock
	invoicesvc invoicedomain.Service
	profilesvc billingprofiledomain.Service
	gateway    paymentdomain.Gateway
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Invoicesvc invoicedomain.Service
	Profilesvc billingprofiledomain.Service
	Gateway    paymentdomain.Gateway
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		log: p.Log.Named("payment.service"),

		clock:      p.Clock,
		invoicesvc: p.Invoicesvc,
		profilesvc: p.Profilesvc,
		gateway:    p.Gateway,
	}
}

// TryPay drives exactly one charge attempt for one invoice. Every exit from
// the PENDING state goes through the invoice ledger; this function never
// mutates invoice status itself.
func (s *Service) TryPay(ctx context.Context, invoiceID, memberID snowflake.ID) (paymentdomain.TryPayResult, error) {
	result := paymentdomain.TryPayResult{
		Status:    paymentdomain.TryPayStatusFail,
		InvoiceID: invoiceID.String(),
	}

	invoice, err := s.invoicesvc.GetByID(ctx, invoiceID)
	if err != nil {
		return result, err
	}

	// fail closed: a wrong owner is recorded, the invoice stays chargeable
	// by the real one
	if invoice.MemberID != memberID {
		if err := s.invoicesvc.RecordAttempt(ctx, invoiceID, paymentdomain.FailReasonForbidden); err != nil {
			return result, err
		}
		s.log.Warn("charge attempt on invoice not owned by caller",
			zap.Int64("invoice_id", int64(invoiceID)),
			zap.Int64("member_id", int64(memberID)),
		)
		result.FailReason = paymentdomain.FailReasonForbidden
		return result, nil
	}

	// duplicate triggers are expected; nothing to do, nothing recorded
	if invoice.Status != invoicedomain.InvoiceStatusPending {
		result.Status = paymentdomain.TryPayStatusSkipped
		return result, nil
	}

	profile, err := s.profilesvc.FindLatestWithKey(ctx, memberID)
	if err != nil {
		var reason string
		switch err {
		case billingprofiledomain.ErrNoBillingProfile:
			reason = paymentdomain.FailReasonNoPaymentMethod
		case billingprofiledomain.ErrNoBillingKey:
			reason = paymentdomain.FailReasonNoBillingKey
		default:
			return result, err
		}
		if err := s.invoicesvc.RecordAttempt(ctx, invoiceID, reason); err != nil {
			return result, err
		}
		result.FailReason = reason
		return result, nil
	}

	orderID := paymentdomain.NewOrderID(invoiceID, s.clock.Now())
	if err := s.invoicesvc.AssignExternalUID(ctx, invoiceID, orderID); err != nil {
		return result, err
	}

	pay := s.gateway.PayByBillingKey(ctx, paymentdomain.BillingKeyCharge{
		BillingKey: *profile.BillingKey,
		OrderID:    orderID,
		CustomerID: profile.ExternalCustomerID,
		OrderName:  fmt.Sprintf("invoice %s", invoiceID.String()),
		Amount:     invoice.Amount,
		Currency:   invoice.Currency,
	})

	// the gateway result is always forwarded to the ledger, success or not
	if _, err := s.invoicesvc.ApplyOutcome(ctx, invoiceID, invoicedomain.Outcome{
		Success:      pay.Success,
		ExternalUID:  pay.PaymentID,
		ExternalTxID: pay.TxID,
		ReceiptURL:   pay.ReceiptURL,
		FailReason:   pay.FailReason,
		RawResponse:  pay.RawJSON,
	}); err != nil {
		return result, err
	}

	result.PaymentID = pay.PaymentID
	result.ReceiptURL = pay.ReceiptURL
	if pay.Success {
		result.Status = paymentdomain.TryPayStatusOK
	} else {
		result.FailReason = pay.FailReason
	}
	return result, nil
}

// ConfirmByPaymentID is the legacy confirm path: the caller already holds a
// gateway payment id and asks for confirmation at a known amount.
func (s *Service) ConfirmByPaymentID(ctx context.Context, paymentID string, amount int64, invoiceID *snowflake.ID) (paymentdomain.TryPayResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	result := paymentdomain.TryPayResult{Status: paymentdomain.TryPayStatusFail, PaymentID: paymentID}
	if paymentID == "" || amount <= 0 {
		return result, paymentdomain.ErrInvalidPayment
	}

	pay := s.gateway.ConfirmPayment(ctx, paymentID, amount)

	target := invoiceID
	if target == nil {
		invoice, err := s.invoicesvc.FindByExternalUID(ctx, paymentID)
		if err != nil {
			return result, err
		}
		if invoice != nil {
			target = &invoice.ID
		}
	}
	if target != nil {
		result.InvoiceID = target.String()
		if _, err := s.invoicesvc.ApplyOutcome(ctx, *target, invoicedomain.Outcome{
			Success:      pay.Success,
			ExternalUID:  paymentID,
			ExternalTxID: pay.TxID,
			ReceiptURL:   pay.ReceiptURL,
			FailReason:   pay.FailReason,
			RawResponse:  pay.RawJSON,
		}); err != nil {
			return result, err
		}
	}

	result.ReceiptURL = pay.ReceiptURL
	if pay.Success {
		result.Status = paymentdomain.TryPayStatusOK
	} else {
		result.FailReason = pay.FailReason
	}
	return result, nil
}
