package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storefront/internal/clock"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"github.com/smallbiznis/storefront/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&subscriptiondomain.Subscription{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) subscriptiondomain.Service {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
}

func TestRenewBeforeTermEndExtendsFromTermEnd(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "basic", Amount: 9900, Currency: "KRW", CycleMonths: 1,
	})
	require.NoError(t, err)

	// first paid charge grants the first cycle
	first, err := svc.Renew(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	termEnd := first.TermEnd

	// member pays 10 days early; remaining days are kept
	clk.Advance(20 * 24 * time.Hour)
	renewed, err := svc.Renew(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	assert.True(t, renewed.TermStart.Equal(termEnd))
	assert.True(t, renewed.TermEnd.Equal(termEnd.AddDate(0, 1, 0)))
}

func TestCreateGrantsNoTermBeforeFirstCharge(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "basic", Amount: 9900, Currency: "KRW", CycleMonths: 1,
	})
	require.NoError(t, err)

	// no coverage yet: the term is zero-length and billing is due now
	assert.True(t, sub.TermEnd.Equal(start))
	require.NotNil(t, sub.NextBillAt)
	assert.True(t, sub.NextBillAt.Equal(start))

	// one successful charge buys exactly one cycle, not two
	renewed, err := svc.Renew(context.Background(), sub.ID, 0)
	require.NoError(t, err)
	assert.True(t, renewed.TermStart.Equal(start))
	assert.True(t, renewed.TermEnd.Equal(start.AddDate(0, 1, 0)))
}

func TestRenewAfterLapseAnchorsAtNow(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "basic", Amount: 9900, Currency: "KRW", CycleMonths: 1,
	})
	require.NoError(t, err)

	// term lapsed two months ago; no retroactive coverage
	clk.Advance(90 * 24 * time.Hour)
	now := clk.Now()
	renewed, err := svc.Renew(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	assert.True(t, renewed.TermStart.Equal(now))
	assert.True(t, renewed.TermEnd.Equal(now.AddDate(0, 1, 0)))
}

func TestRenewDefaultsToCycleMonths(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "yearly", Amount: 99000, Currency: "KRW", CycleMonths: 12,
	})
	require.NoError(t, err)

	renewed, err := svc.Renew(context.Background(), sub.ID, 0)
	require.NoError(t, err)
	assert.True(t, renewed.TermEnd.Equal(sub.TermEnd.AddDate(0, 12, 0)))
}

func TestRenewCanceledSubscriptionFails(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "basic", Amount: 9900, Currency: "KRW",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), snowflake.ID(1001), sub.ID))

	_, err = svc.Renew(context.Background(), sub.ID, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotActive)
}

func TestCancelChecksOwnership(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	db := setupTestDB(t)
	svc := newTestService(t, db, clk)

	sub, err := svc.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: snowflake.ID(1001), PlanCode: "basic", Amount: 9900, Currency: "KRW",
	})
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), snowflake.ID(2002), sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotOwned)

	got, err := svc.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
}
