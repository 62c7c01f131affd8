package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByExternalUID(ctx context.Context, db *gorm.DB, uid string) (*Invoice, error)
	FindReusablePending(ctx context.Context, db *gorm.DB, memberID snowflake.ID, subscriptionID *snowflake.ID, amount int64, currency string, since time.Time) (*Invoice, error)
	// AssignExternalUID writes the uid only when none is bound yet.
	AssignExternalUID(ctx context.Context, db *gorm.DB, id snowflake.ID, uid string, now time.Time) error
	// MarkTerminal performs the conditional transition out of PENDING and
	// reports how many rows changed.
	MarkTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, uid string, paidAt *time.Time, now time.Time) (int64, error)
	InsertAttempt(ctx context.Context, db *gorm.DB, attempt *Attempt) error
	ListAttempts(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Attempt, error)
}
