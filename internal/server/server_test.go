package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	reconciledomain "github.com/smallbiznis/storefront/internal/reconcile/domain"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"go.uber.org/zap"
)

type fakePaymentService struct {
	tryPayCalls  int
	lastInvoice  snowflake.ID
	lastMember   snowflake.ID
	result       paymentdomain.TryPayResult
	err          error
	confirmCalls int
}

func (f *fakePaymentService) TryPay(ctx context.Context, invoiceID, memberID snowflake.ID) (paymentdomain.TryPayResult, error) {
	f.tryPayCalls++
	f.lastInvoice = invoiceID
	f.lastMember = memberID
	_ = ctx
	return f.result, f.err
}

func (f *fakePaymentService) ConfirmByPaymentID(ctx context.Context, paymentID string, amount int64, invoiceID *snowflake.ID) (paymentdomain.TryPayResult, error) {
	f.confirmCalls++
	_ = ctx
	_ = paymentID
	_ = amount
	_ = invoiceID
	return f.result, f.err
}

type fakeWebhookService struct {
	calls       int
	lastPayload paymentdomain.WebhookPayload
	err         error
}

func (f *fakeWebhookService) Handle(ctx context.Context, payload paymentdomain.WebhookPayload) error {
	f.calls++
	f.lastPayload = payload
	_ = ctx
	return f.err
}

type fakeReconcileService struct {
	calls    int
	lastPlan string
	outcome  reconciledomain.ChargeOutcome
	err      error
}

func (f *fakeReconcileService) ChargeAndConfirm(ctx context.Context, memberID snowflake.ID, planCode string, months int) (reconciledomain.ChargeOutcome, error) {
	f.calls++
	f.lastPlan = planCode
	_ = ctx
	_ = memberID
	_ = months
	return f.outcome, f.err
}

func (f *fakeReconcileService) ChargeByBillingKeyAndConfirm(ctx context.Context, invoiceID, memberID snowflake.ID, months int) (reconciledomain.ChargeOutcome, error) {
	_ = ctx
	_ = invoiceID
	_ = memberID
	_ = months
	return f.outcome, f.err
}

type fakeSubscriptionLookup struct{}

func (f *fakeSubscriptionLookup) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func (f *fakeSubscriptionLookup) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	_ = id
	return nil, subscriptiondomain.ErrNotFound
}

func (f *fakeSubscriptionLookup) FindActiveByMember(ctx context.Context, memberID snowflake.ID, planCode string) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	return &subscriptiondomain.Subscription{
		ID:       snowflake.ID(77),
		MemberID: memberID,
		PlanCode: planCode,
		Status:   subscriptiondomain.SubscriptionStatusActive,
	}, nil
}

func (f *fakeSubscriptionLookup) Renew(ctx context.Context, id snowflake.ID, months int) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	_ = id
	_ = months
	return nil, subscriptiondomain.ErrNotFound
}

func (f *fakeSubscriptionLookup) Cancel(ctx context.Context, memberID, id snowflake.ID) error {
	_ = ctx
	_ = memberID
	_ = id
	return nil
}

func newTestServer(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	srv.log = zap.NewNop()

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.registerPaymentRoutes()
	srv.registerWebhookRoutes()
	srv.registerSubscriptionRoutes()
	return router
}

func TestConfirmInvoiceRequiresMemberHeader(t *testing.T) {
	paySvc := &fakePaymentService{}
	router := newTestServer(&Server{paymentSvc: paySvc})

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm/123", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if paySvc.tryPayCalls != 0 {
		t.Fatal("expected payment service not to be called without identity")
	}
}

func TestConfirmInvoiceDelegatesToOrchestrator(t *testing.T) {
	paySvc := &fakePaymentService{
		result: paymentdomain.TryPayResult{Status: paymentdomain.TryPayStatusOK, InvoiceID: "123"},
	}
	router := newTestServer(&Server{paymentSvc: paySvc})

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm/123", nil)
	req.Header.Set("X-Member-Id", "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if paySvc.tryPayCalls != 1 {
		t.Fatalf("expected one TryPay call, got %d", paySvc.tryPayCalls)
	}
	if paySvc.lastMember != snowflake.ID(42) {
		t.Fatalf("expected member 42, got %d", paySvc.lastMember)
	}
	if !strings.Contains(resp.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected ok status in body, got %s", resp.Body.String())
	}
}

func TestConfirmInvoiceMapsNotFound(t *testing.T) {
	paySvc := &fakePaymentService{err: invoicedomain.ErrNotFound}
	router := newTestServer(&Server{paymentSvc: paySvc})

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm/123", nil)
	req.Header.Set("X-Member-Id", "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestWebhookAlwaysAnswers200(t *testing.T) {
	webhookSvc := &fakeWebhookService{err: paymentdomain.ErrInvalidPayload}
	router := newTestServer(&Server{webhookSvc: webhookSvc})

	body := bytes.NewBufferString(`{"paymentId":"","status":"PAID"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pg", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 even on rejected payload, got %d", resp.Code)
	}
	if webhookSvc.calls != 1 {
		t.Fatalf("expected one Handle call, got %d", webhookSvc.calls)
	}
	if !strings.Contains(resp.Body.String(), "ignored") {
		t.Fatalf("expected ignored status in body, got %s", resp.Body.String())
	}
}

func TestWebhookPassesPayloadThrough(t *testing.T) {
	webhookSvc := &fakeWebhookService{}
	router := newTestServer(&Server{webhookSvc: webhookSvc})

	body := bytes.NewBufferString(`{"paymentId":"pay_9","status":"PAID","transactionUid":"tx_9"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pg", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if webhookSvc.lastPayload.PaymentID != "pay_9" {
		t.Fatalf("expected paymentId pay_9, got %q", webhookSvc.lastPayload.PaymentID)
	}
	if webhookSvc.lastPayload.TransactionUID != "tx_9" {
		t.Fatalf("expected transactionUid tx_9, got %q", webhookSvc.lastPayload.TransactionUID)
	}
}

func TestStartSubscriptionTimeoutIsStill200(t *testing.T) {
	reconcileSvc := &fakeReconcileService{
		outcome: reconciledomain.ChargeOutcome{Status: reconciledomain.OutcomeTimeout, InvoiceID: "77"},
	}
	subSvc := &fakeSubscriptionLookup{}
	router := newTestServer(&Server{reconcileSvc: reconcileSvc, subscriptionSvc: subSvc})

	body := bytes.NewBufferString(`{"planId":"pro"}`)
	req := httptest.NewRequest(http.MethodPost, "/sub", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Member-Id", "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 on poll timeout, got %d", resp.Code)
	}
	if reconcileSvc.calls != 1 {
		t.Fatalf("expected one ChargeAndConfirm call, got %d", reconcileSvc.calls)
	}
	if !strings.Contains(resp.Body.String(), reconciledomain.OutcomeTimeout) {
		t.Fatalf("expected TIMEOUT status in body, got %s", resp.Body.String())
	}
}
