package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
)

type lookupResponse struct {
	Found      bool   `json:"found"`
	Status     string `json:"status,omitempty"`
	TxID       string `json:"tx_id,omitempty"`
	PaymentID  string `json:"payment_id,omitempty"`
	ReceiptURL string `json:"receipt_url,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
}

func (s *Server) LookupPayment(c *gin.Context) {
	txID := strings.TrimSpace(c.Query("txId"))
	paymentID := strings.TrimSpace(c.Query("paymentId"))
	if txID == "" && paymentID == "" {
		AbortWithError(c, newValidationError("txId", "invalid_lookup", "txId or paymentId required"))
		return
	}

	result := s.gateway.SafeLookup(c.Request.Context(), txID, paymentID)

	c.JSON(http.StatusOK, gin.H{"data": lookupResponse{
		Found:      result.Found,
		Status:     result.Status,
		TxID:       result.TxID,
		PaymentID:  result.PaymentID,
		ReceiptURL: result.ReceiptURL,
		FailReason: result.FailReason,
	}})
}

// BillingKeyReturn is the post-redirect landing of a billing-key
// registration. It reconciles the registration result with the gateway and
// stores the issued key and card metadata on the member's profile.
func (s *Server) BillingKeyReturn(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	txID := strings.TrimSpace(c.Query("txId"))
	paymentID := strings.TrimSpace(c.Query("paymentId"))
	if txID == "" && paymentID == "" {
		AbortWithError(c, newValidationError("txId", "invalid_lookup", "txId or paymentId required"))
		return
	}

	result := s.gateway.SafeLookup(c.Request.Context(), txID, paymentID)
	if !result.Found {
		AbortWithError(c, billingprofiledomain.ErrNotFound)
		return
	}

	customerID := paymentID
	if customerID == "" {
		customerID = txID
	}
	profile, err := s.billingProfileSvc.Upsert(c.Request.Context(), billingprofiledomain.UpsertRequest{
		MemberID:           member,
		ExternalCustomerID: customerID,
		PG:                 result.PG,
		CardBrand:          result.CardBrand,
		CardBin:            result.CardBin,
		CardLast4:          result.CardLast4,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if key := strings.TrimSpace(result.BillingKey); key != "" {
		if err := s.billingProfileSvc.SetBillingKey(c.Request.Context(), profile.ID, key); err != nil {
			AbortWithError(c, err)
			return
		}
		profile.BillingKey = &key
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}
