package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	billingprofilerepo "github.com/smallbiznis/storefront/internal/billingprofile/repository"
	billingprofilesvc "github.com/smallbiznis/storefront/internal/billingprofile/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/storefront/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/storefront/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	reconciledomain "github.com/smallbiznis/storefront/internal/reconcile/domain"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/storefront/internal/subscription/repository"
	subscriptionsvc "github.com/smallbiznis/storefront/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manual Mocks

// scriptedGateway replays a fixed sequence of lookup results; the last one
// repeats once the script runs out.
type scriptedGateway struct {
	schedule    paymentdomain.PayResult
	lookups     []paymentdomain.LookupResult
	lookupCalls int
}

func (g *scriptedGateway) PayByBillingKey(ctx context.Context, req paymentdomain.BillingKeyCharge) paymentdomain.PayResult {
	return g.schedule
}
func (g *scriptedGateway) ScheduleBillingKeyCharge(ctx context.Context, req paymentdomain.BillingKeyCharge, at time.Time) paymentdomain.PayResult {
	return g.schedule
}
func (g *scriptedGateway) ConfirmPayment(ctx context.Context, paymentID string, amount int64) paymentdomain.PayResult {
	return g.schedule
}
func (g *scriptedGateway) SafeLookup(ctx context.Context, txID, paymentID string) paymentdomain.LookupResult {
	idx := g.lookupCalls
	if idx >= len(g.lookups) {
		idx = len(g.lookups) - 1
	}
	g.lookupCalls++
	if idx < 0 {
		return paymentdomain.LookupResult{}
	}
	return g.lookups[idx]
}

type fixture struct {
	db            *gorm.DB
	clk           *clock.FakeClock
	gw            *scriptedGateway
	invoices      invoicedomain.Service
	profiles      billingprofiledomain.Service
	subscriptions subscriptiondomain.Service
	reconcile     *Service
}

func testBillingConfig() config.Config {
	cfg := config.Config{}
	cfg.Billing = config.BillingConfig{
		ScheduleDelay:      2 * time.Second,
		SettleDelay:        3 * time.Second,
		PollInterval:       time.Second,
		PollTimeout:        10 * time.Second,
		InvoiceReuseWindow: 10 * time.Minute,
	}
	return cfg
}

func newFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.Attempt{},
		&billingprofiledomain.BillingProfile{},
		&subscriptiondomain.Subscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	invoices := invoicesvc.NewService(invoicesvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: invoicerepo.Provide(),
	})
	profiles := billingprofilesvc.NewService(billingprofilesvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: billingprofilerepo.Provide(),
	})
	subscriptions := subscriptionsvc.NewService(subscriptionsvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: subscriptionrepo.Provide(),
	})

	gw := &scriptedGateway{schedule: paymentdomain.PayResult{Success: true}}
	svc := NewService(ServiceParam{
		Log:             zap.NewNop(),
		Config:          testBillingConfig(),
		Clock:           clk,
		Invoicesvc:      invoices,
		Profilesvc:      profiles,
		Subscriptionsvc: subscriptions,
		Gateway:         gw,
	}).(*Service)
	// drive the poll loop on the fake clock instead of real timers
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		clk.Advance(d)
		return nil
	}

	return &fixture{
		db: db, clk: clk, gw: gw,
		invoices: invoices, profiles: profiles, subscriptions: subscriptions,
		reconcile: svc,
	}
}

func (f *fixture) memberWithBillingKey(t *testing.T, member snowflake.ID) {
	profile, err := f.profiles.Upsert(context.Background(), billingprofiledomain.UpsertRequest{
		MemberID: member, ExternalCustomerID: "cus_" + member.String(),
	})
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetBillingKey(context.Background(), profile.ID, "bk_"+member.String()))
}

func (f *fixture) activeSubscription(t *testing.T, member snowflake.ID) *subscriptiondomain.Subscription {
	sub, err := f.subscriptions.Create(context.Background(), subscriptiondomain.CreateRequest{
		MemberID: member, PlanCode: "basic", Amount: 9900, Currency: "KRW", CycleMonths: 1,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) invoiceCount(t *testing.T) int64 {
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM invoices`).Scan(&count).Error)
	return count
}

func TestChargeAndConfirmHappyPath(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	sub := f.activeSubscription(t, member)

	// gateway needs two polls before the payment settles
	f.gw.lookups = []paymentdomain.LookupResult{
		{Found: true, Status: "PENDING"},
		{Found: true, Status: "PENDING"},
		{
			Found: true, Status: paymentdomain.GatewayStatusPaid,
			TxID: "tx_1", PaymentID: "pay_1",
			PG: "TOSSPAYMENTS", CardBrand: "VISA", CardBin: "411111", CardLast4: "1111",
			ReceiptURL: "https://receipt.example/1",
		},
	}

	outcome, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeOK, outcome.Status)
	assert.Equal(t, "pay_1", outcome.PaymentID)
	assert.Equal(t, "https://receipt.example/1", outcome.ReceiptURL)
	assert.Equal(t, 3, f.gw.lookupCalls)

	// invoice is PAID with exactly one SUCCESS attempt
	invoice, err := f.invoices.FindByExternalUID(context.Background(), "pay_1")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, int64(9900), invoice.Amount)
	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, invoicedomain.AttemptResultSuccess, attempts[0].Result)

	// the first paid charge grants the first cycle from settlement time
	renewed, err := f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, renewed.TermEnd.Equal(f.clk.Now().AddDate(0, 1, 0)))

	// card metadata was refreshed on the profile
	profile, err := f.profiles.FindLatestWithKey(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "VISA", profile.CardBrand)
	assert.Equal(t, "411111", profile.CardBin)
}

func TestPollTimeoutLeavesInvoicePending(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	sub := f.activeSubscription(t, member)
	termEnd := sub.TermEnd

	// the gateway never goes terminal
	f.gw.lookups = []paymentdomain.LookupResult{{Found: true, Status: "PENDING"}}

	outcome, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeTimeout, outcome.Status)

	invoice, err := f.invoices.GetByID(context.Background(), mustParseID(t, outcome.InvoiceID))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, invoice.Status)

	// no attempt rows: nothing terminal happened
	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	// and the term did not move
	got, err := f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, got.TermEnd.Equal(termEnd))
}

func TestTerminalFailureMarksInvoiceFailed(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	sub := f.activeSubscription(t, member)
	termEnd := sub.TermEnd

	f.gw.lookups = []paymentdomain.LookupResult{
		{Found: true, Status: "PENDING"},
		{Found: true, Status: paymentdomain.GatewayStatusFailed, FailReason: "insufficient funds"},
	}

	outcome, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeFail, outcome.Status)
	assert.Equal(t, "insufficient funds", outcome.FailReason)

	invoice, err := f.invoices.GetByID(context.Background(), mustParseID(t, outcome.InvoiceID))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, invoice.Status)

	got, err := f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, got.TermEnd.Equal(termEnd))
}

func TestTimedOutInvoiceIsReusedWithinWindow(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	f.activeSubscription(t, member)

	f.gw.lookups = []paymentdomain.LookupResult{{Found: true, Status: "PENDING"}}

	first, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	require.Equal(t, reconciledomain.OutcomeTimeout, first.Status)
	require.Equal(t, int64(1), f.invoiceCount(t))

	// retry a minute later picks up the same PENDING invoice
	f.clk.Advance(time.Minute)
	second, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.Equal(t, int64(1), f.invoiceCount(t))
}

func TestChargeFailsFastWithoutBillingProfile(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.activeSubscription(t, member)

	_, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	assert.ErrorIs(t, err, billingprofiledomain.ErrNoBillingProfile)
	assert.Zero(t, f.gw.lookupCalls)
}

func TestChargeFailsFastWithoutBillingKey(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.activeSubscription(t, member)

	// a profile without an issued key is not chargeable
	_, err := f.profiles.Upsert(context.Background(), billingprofiledomain.UpsertRequest{
		MemberID: member, ExternalCustomerID: "cus_" + member.String(),
	})
	require.NoError(t, err)

	_, err = f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	assert.ErrorIs(t, err, billingprofiledomain.ErrNoBillingKey)
	assert.Zero(t, f.gw.lookupCalls)
}

func TestCardMetaRefreshParsesRawDocument(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	f.activeSubscription(t, member)

	// card metadata arrives only inside the raw gateway body
	f.gw.lookups = []paymentdomain.LookupResult{
		{
			Found: true, Status: paymentdomain.GatewayStatusPaid,
			TxID: "tx_1", PaymentID: "pay_1",
			RawJSON: []byte(`{"status":"PAID","channel":{"pgProvider":"TOSSPAYMENTS"},"method":{"card":{"brand":"MASTERCARD","bin":"550000","last4":"0004"}}}`),
		},
	}

	outcome, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	require.Equal(t, reconciledomain.OutcomeOK, outcome.Status)

	profile, err := f.profiles.FindLatestWithKey(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "MASTERCARD", profile.CardBrand)
	assert.Equal(t, "550000", profile.CardBin)
	assert.Equal(t, "0004", profile.CardLast4)
	assert.Equal(t, "TOSSPAYMENTS", profile.PG)
}

func TestChargeFailsFastOnSettledInvoice(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)

	invoice, err := f.invoices.Create(context.Background(), invoicedomain.CreateRequest{
		MemberID: member, Amount: 9900, Currency: "KRW",
	})
	require.NoError(t, err)
	_, err = f.invoices.ApplyOutcome(context.Background(), invoice.ID, invoicedomain.Outcome{Success: true})
	require.NoError(t, err)

	_, err = f.reconcile.ChargeByBillingKeyAndConfirm(context.Background(), invoice.ID, member, 1)
	assert.ErrorIs(t, err, reconciledomain.ErrInvoiceNotPending)
}

func TestChargeFailsFastOnForeignInvoice(t *testing.T) {
	f := newFixture(t)
	owner := snowflake.ID(1001)
	intruder := snowflake.ID(2002)
	f.memberWithBillingKey(t, intruder)

	invoice, err := f.invoices.Create(context.Background(), invoicedomain.CreateRequest{
		MemberID: owner, Amount: 9900, Currency: "KRW",
	})
	require.NoError(t, err)

	_, err = f.reconcile.ChargeByBillingKeyAndConfirm(context.Background(), invoice.ID, intruder, 1)
	assert.ErrorIs(t, err, reconciledomain.ErrInvoiceNotOwned)
}

func TestScheduleRejectionSettlesFailure(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	f.activeSubscription(t, member)

	f.gw.schedule = paymentdomain.PayResult{Success: false, FailReason: "HTTP_400"}

	outcome, err := f.reconcile.ChargeAndConfirm(context.Background(), member, "basic", 1)
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeFail, outcome.Status)
	assert.Equal(t, "HTTP_400", outcome.FailReason)
	assert.Zero(t, f.gw.lookupCalls)

	invoice, err := f.invoices.GetByID(context.Background(), mustParseID(t, outcome.InvoiceID))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, invoice.Status)
}

func mustParseID(t *testing.T, raw string) snowflake.ID {
	id, err := snowflake.ParseString(raw)
	require.NoError(t, err)
	return id
}
