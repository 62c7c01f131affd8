package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ConfirmInvoice(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(c.Param("invoiceId")))
	if err != nil {
		AbortWithError(c, newValidationError("invoiceId", "invalid_invoice_id", "invalid invoice id"))
		return
	}

	result, err := s.paymentSvc.TryPay(c.Request.Context(), invoiceID, member)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.metrics.RecordChargeAttempt(c.Request.Context(), string(result.Status))

	c.JSON(http.StatusOK, gin.H{"data": result})
}

type confirmByPaymentIDRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	InvoiceID string `json:"invoiceId"`
}

func (s *Server) ConfirmByPaymentID(c *gin.Context) {
	var req confirmByPaymentIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var invoiceID *snowflake.ID
	if raw := strings.TrimSpace(req.InvoiceID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("invoiceId", "invalid_invoice_id", "invalid invoice id"))
			return
		}
		invoiceID = &parsed
	}

	result, err := s.paymentSvc.ConfirmByPaymentID(c.Request.Context(), strings.TrimSpace(req.PaymentID), req.Amount, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.metrics.RecordChargeAttempt(c.Request.Context(), string(result.Status))

	c.JSON(http.StatusOK, gin.H{"data": result})
}
