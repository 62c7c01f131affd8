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
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/storefront/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/storefront/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manual Mocks

type stubGateway struct {
	payResult     paymentdomain.PayResult
	payCalls      int
	lastCharge    paymentdomain.BillingKeyCharge
	confirmResult paymentdomain.PayResult
}

func (g *stubGateway) PayByBillingKey(ctx context.Context, req paymentdomain.BillingKeyCharge) paymentdomain.PayResult {
	g.payCalls++
	g.lastCharge = req
	return g.payResult
}
func (g *stubGateway) ScheduleBillingKeyCharge(ctx context.Context, req paymentdomain.BillingKeyCharge, at time.Time) paymentdomain.PayResult {
	return g.payResult
}
func (g *stubGateway) ConfirmPayment(ctx context.Context, paymentID string, amount int64) paymentdomain.PayResult {
	return g.confirmResult
}
func (g *stubGateway) SafeLookup(ctx context.Context, txID, paymentID string) paymentdomain.LookupResult {
	return paymentdomain.LookupResult{}
}

type fixture struct {
	db         *gorm.DB
	clk        *clock.FakeClock
	gw         *stubGateway
	invoices   invoicedomain.Service
	profiles   billingprofiledomain.Service
	payments   paymentdomain.Service
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
	gw := &stubGateway{}
	payments := NewService(ServiceParam{
		Log: zap.NewNop(), Clock: clk, Invoicesvc: invoices, Profilesvc: profiles, Gateway: gw,
	})
	return &fixture{db: db, clk: clk, gw: gw, invoices: invoices, profiles: profiles, payments: payments}
}

func (f *fixture) memberWithBillingKey(t *testing.T, member snowflake.ID) {
	profile, err := f.profiles.Upsert(context.Background(), billingprofiledomain.UpsertRequest{
		MemberID: member, ExternalCustomerID: "cus_" + member.String(),
	})
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetBillingKey(context.Background(), profile.ID, "bk_"+member.String()))
}

func (f *fixture) pendingInvoice(t *testing.T, member snowflake.ID) *invoicedomain.Invoice {
	invoice, err := f.invoices.Create(context.Background(), invoicedomain.CreateRequest{
		MemberID: member, Amount: 9900, Currency: "KRW",
	})
	require.NoError(t, err)
	return invoice
}

func TestTryPayHappyPath(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	invoice := f.pendingInvoice(t, member)

	f.gw.payResult = paymentdomain.PayResult{
		Success: true, PaymentID: "pay_1", TxID: "tx_1",
		ReceiptURL: "https://receipt.example/1", RawJSON: []byte(`{"status":"PAID"}`),
	}

	result, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusOK, result.Status)
	assert.Equal(t, "pay_1", result.PaymentID)
	assert.Equal(t, int64(9900), f.gw.lastCharge.Amount)
	assert.Equal(t, "KRW", f.gw.lastCharge.Currency)

	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)

	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, invoicedomain.AttemptResultSuccess, attempts[0].Result)
}

func TestTryPayOwnershipFailsClosed(t *testing.T) {
	f := newFixture(t)
	owner := snowflake.ID(1001)
	intruder := snowflake.ID(2002)
	f.memberWithBillingKey(t, owner)
	f.memberWithBillingKey(t, intruder)
	invoice := f.pendingInvoice(t, owner)

	result, err := f.payments.TryPay(context.Background(), invoice.ID, intruder)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusFail, result.Status)
	assert.Equal(t, paymentdomain.FailReasonForbidden, result.FailReason)
	assert.Zero(t, f.gw.payCalls)

	// the attempt is on record but the owner can still pay
	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, got.Status)

	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].FailReason)
	assert.Equal(t, paymentdomain.FailReasonForbidden, *attempts[0].FailReason)
}

func TestTryPayDuplicateTriggerIsSkipped(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	invoice := f.pendingInvoice(t, member)

	f.gw.payResult = paymentdomain.PayResult{Success: true, PaymentID: "pay_1"}
	first, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.TryPayStatusOK, first.Status)

	second, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusSkipped, second.Status)
	assert.Equal(t, 1, f.gw.payCalls)

	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestTryPayNoPaymentMethod(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	invoice := f.pendingInvoice(t, member)

	result, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusFail, result.Status)
	assert.Equal(t, paymentdomain.FailReasonNoPaymentMethod, result.FailReason)
	assert.Zero(t, f.gw.payCalls)

	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, got.Status)
}

func TestTryPayNoBillingKey(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	invoice := f.pendingInvoice(t, member)

	// the member registered a profile but never finished key issuance
	_, err := f.profiles.Upsert(context.Background(), billingprofiledomain.UpsertRequest{
		MemberID: member, ExternalCustomerID: "cus_" + member.String(),
	})
	require.NoError(t, err)

	result, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusFail, result.Status)
	assert.Equal(t, paymentdomain.FailReasonNoBillingKey, result.FailReason)
	assert.Zero(t, f.gw.payCalls)

	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, got.Status)

	attempts, err := f.invoices.ListAttempts(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].FailReason)
	assert.Equal(t, paymentdomain.FailReasonNoBillingKey, *attempts[0].FailReason)
}

func TestTryPayGatewayFailureMarksInvoiceFailed(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	f.memberWithBillingKey(t, member)
	invoice := f.pendingInvoice(t, member)

	f.gw.payResult = paymentdomain.PayResult{Success: false, FailReason: "HTTP_502"}

	result, err := f.payments.TryPay(context.Background(), invoice.ID, member)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusFail, result.Status)
	assert.Equal(t, "HTTP_502", result.FailReason)

	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, got.Status)
}

func TestConfirmByPaymentIDResolvesInvoice(t *testing.T) {
	f := newFixture(t)
	member := snowflake.ID(1001)
	invoice := f.pendingInvoice(t, member)
	require.NoError(t, f.invoices.AssignExternalUID(context.Background(), invoice.ID, "pay_known"))

	f.gw.confirmResult = paymentdomain.PayResult{Success: true, TxID: "tx_9"}

	result, err := f.payments.ConfirmByPaymentID(context.Background(), "pay_known", 9900, nil)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.TryPayStatusOK, result.Status)

	got, err := f.invoices.GetByID(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)
}

func TestConfirmByPaymentIDValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.ConfirmByPaymentID(context.Background(), "  ", 9900, nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayment)

	_, err = f.payments.ConfirmByPaymentID(context.Background(), "pay_1", 0, nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayment)
}
