package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

const invoiceColumns = `id, member_id, subscription_id, period_start, period_end,
	 amount, currency, status, external_uid, paid_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, member_id, subscription_id, period_start, period_end,
			amount, currency, status, external_uid, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.MemberID,
		invoice.SubscriptionID,
		invoice.PeriodStart,
		invoice.PeriodEnd,
		invoice.Amount,
		invoice.Currency,
		invoice.Status,
		invoice.ExternalUID,
		invoice.PaidAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByExternalUID(ctx context.Context, db *gorm.DB, uid string) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE external_uid = ? LIMIT 1`,
		uid,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindReusablePending(ctx context.Context, db *gorm.DB, memberID snowflake.ID, subscriptionID *snowflake.ID, amount int64, currency string, since time.Time) (*invoicedomain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		 WHERE member_id = ? AND amount = ? AND currency = ? AND status = ?
		   AND created_at >= ?`
	args := []any{memberID, amount, currency, invoicedomain.InvoiceStatusPending, since}
	if subscriptionID != nil {
		query += ` AND subscription_id = ?`
		args = append(args, *subscriptionID)
	} else {
		query += ` AND subscription_id IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var invoice invoicedomain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) AssignExternalUID(ctx context.Context, db *gorm.DB, id snowflake.ID, uid string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET external_uid = ?, updated_at = ?
		 WHERE id = ? AND (external_uid IS NULL OR external_uid = '')`,
		uid,
		now,
		id,
	).Error
}

func (r *repo) MarkTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus, uid string, paidAt *time.Time, now time.Time) (int64, error) {
	// the terminal write records the gateway's authoritative id, replacing
	// the pre-charge order id; NULLIF keeps a blank uid from clobbering an
	// existing binding
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?,
		     external_uid = COALESCE(NULLIF(?, ''), external_uid),
		     paid_at = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		uid,
		paidAt,
		now,
		id,
		invoicedomain.InvoiceStatusPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) InsertAttempt(ctx context.Context, db *gorm.DB, attempt *invoicedomain.Attempt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_attempts (
			id, invoice_id, result, fail_reason, external_tx_id, receipt_url,
			raw_response, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.InvoiceID,
		attempt.Result,
		attempt.FailReason,
		attempt.ExternalTxID,
		attempt.ReceiptURL,
		attempt.RawResponse,
		attempt.CreatedAt,
	).Error
}

func (r *repo) ListAttempts(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.Attempt, error) {
	var attempts []invoicedomain.Attempt
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, result, fail_reason, external_tx_id, receipt_url,
		 raw_response, created_at
		 FROM payment_attempts
		 WHERE invoice_id = ?
		 ORDER BY created_at ASC, id ASC`,
		invoiceID,
	).Scan(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
