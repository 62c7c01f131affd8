// Package gateway implements the payment-gateway client. The gateway owns
// the authoritative transaction state; this client normalizes its uneven
// HTTP surface into the canonical result values in payment/domain.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/config"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	FailReasonEmptyResponse = "EMPTY_RESPONSE"
)

// Client talks to the external payment gateway. It is stateless per call:
// base URL and credentials are bound at construction and never mutated.
type Client struct {
	baseURL string
	secret  string
	storeID string
	httpc   *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/"),
		secret:  strings.TrimSpace(cfg.Gateway.APISecret),
		storeID: strings.TrimSpace(cfg.Gateway.StoreID),
		httpc:   &http.Client{Timeout: timeout},
		log:     log.Named("gateway.client"),
	}
}

var _ paymentdomain.Gateway = (*Client)(nil)

// PayByBillingKey charges a stored billing key immediately.
func (c *Client) PayByBillingKey(ctx context.Context, req paymentdomain.BillingKeyCharge) paymentdomain.PayResult {
	body := map[string]any{
		"billingKey": req.BillingKey,
		"orderName":  req.OrderName,
		"customer":   map[string]any{"id": req.CustomerID},
		"amount":     map[string]any{"total": req.Amount},
		"currency":   req.Currency,
	}
	if c.storeID != "" {
		body["storeId"] = c.storeID
	}
	return c.payRequest(ctx, http.MethodPost, "/payments/"+url.PathEscape(req.OrderID)+"/billing-key", body, req.OrderID)
}

// ScheduleBillingKeyCharge registers the charge for a short-forward time so
// the gateway has ingested it before the first poll.
func (c *Client) ScheduleBillingKeyCharge(ctx context.Context, req paymentdomain.BillingKeyCharge, at time.Time) paymentdomain.PayResult {
	body := map[string]any{
		"payment": map[string]any{
			"billingKey": req.BillingKey,
			"orderName":  req.OrderName,
			"customer":   map[string]any{"id": req.CustomerID},
			"amount":     map[string]any{"total": req.Amount},
			"currency":   req.Currency,
		},
		"timeToPay": at.UTC().Format(time.RFC3339),
	}
	if c.storeID != "" {
		body["storeId"] = c.storeID
	}
	return c.payRequest(ctx, http.MethodPost, "/payments/"+url.PathEscape(req.OrderID)+"/schedule", body, req.OrderID)
}

// ConfirmPayment is the legacy confirm-by-id path.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID string, amount int64) paymentdomain.PayResult {
	body := map[string]any{
		"amount": map[string]any{"total": amount},
	}
	return c.payRequest(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/confirm", body, paymentID)
}

// SafeLookup queries payment state by order/payment id, falling back to the
// transaction id. Missing or renamed fields in the response are tolerated.
func (c *Client) SafeLookup(ctx context.Context, txID, paymentID string) paymentdomain.LookupResult {
	paymentID = strings.TrimSpace(paymentID)
	txID = strings.TrimSpace(txID)

	if paymentID != "" {
		result := c.lookupPath(ctx, "/payments/"+url.PathEscape(paymentID))
		if result.Found || txID == "" {
			return result
		}
	}
	if txID != "" {
		return c.lookupPath(ctx, "/transactions/"+url.PathEscape(txID))
	}
	return paymentdomain.LookupResult{FailReason: FailReasonEmptyResponse}
}

func (c *Client) lookupPath(ctx context.Context, path string) paymentdomain.LookupResult {
	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return paymentdomain.LookupResult{FailReason: err.Error()}
	}
	if status == http.StatusNotFound {
		// not ingested yet; pollers keep going
		return paymentdomain.LookupResult{RawJSON: raw}
	}
	if status >= http.StatusBadRequest {
		return paymentdomain.LookupResult{FailReason: httpFailReason(status, raw), RawJSON: raw}
	}
	if len(raw) == 0 {
		return paymentdomain.LookupResult{FailReason: FailReasonEmptyResponse}
	}

	doc := decodeDoc(raw)
	if doc == nil {
		return paymentdomain.LookupResult{FailReason: FailReasonEmptyResponse, RawJSON: raw}
	}
	return paymentdomain.LookupResult{
		Found:      true,
		Status:     strings.ToUpper(firstString(doc, statusPaths)),
		TxID:       firstString(doc, txIDPaths),
		PaymentID:  firstString(doc, paymentIDPaths),
		PG:         firstString(doc, pgPaths),
		CardBrand:  firstString(doc, brandPaths),
		CardBin:    firstString(doc, binPaths),
		CardLast4:  firstString(doc, last4Paths),
		BillingKey: firstString(doc, billingKeyPaths),
		ReceiptURL: firstString(doc, receiptPaths),
		FailReason: firstString(doc, failMsgPaths),
		RawJSON:    raw,
	}
}

func (c *Client) payRequest(ctx context.Context, method, path string, body map[string]any, paymentID string) paymentdomain.PayResult {
	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return paymentdomain.PayResult{FailReason: err.Error(), RawJSON: raw}
	}
	if len(raw) == 0 {
		return paymentdomain.PayResult{FailReason: FailReasonEmptyResponse}
	}

	doc := decodeDoc(raw)
	if status >= http.StatusBadRequest {
		reason := ""
		if doc != nil {
			reason = firstString(doc, failMsgPaths)
		}
		if reason == "" {
			reason = httpFailReason(status, raw)
		}
		return paymentdomain.PayResult{FailReason: reason, RawJSON: raw}
	}
	if doc == nil {
		return paymentdomain.PayResult{FailReason: FailReasonEmptyResponse, RawJSON: raw}
	}

	result := paymentdomain.PayResult{
		Success:    true,
		PaymentID:  firstString(doc, paymentIDPaths),
		TxID:       firstString(doc, txIDPaths),
		ReceiptURL: firstString(doc, receiptPaths),
		RawJSON:    raw,
	}
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	if gwStatus := strings.ToUpper(firstString(doc, statusPaths)); gwStatus == paymentdomain.GatewayStatusFailed || gwStatus == paymentdomain.GatewayStatusCancelled {
		result.Success = false
		result.FailReason = firstString(doc, failMsgPaths)
		if result.FailReason == "" {
			result.FailReason = gwStatus
		}
	}
	return result
}

func (c *Client) do(ctx context.Context, method, path string, body map[string]any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "PortOne "+c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed", zap.String("path", path), zap.Error(err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func httpFailReason(status int, raw []byte) string {
	if len(raw) == 0 {
		return FailReasonEmptyResponse
	}
	return fmt.Sprintf("HTTP_%d", status)
}
