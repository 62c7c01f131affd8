package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

// HandleWebhook ingests gateway push notifications. It always answers 200;
// a non-2xx would make the provider retry-storm, and an unknown payment is
// not an error worth retrying.
func (s *Server) HandleWebhook(c *gin.Context) {
	var payload paymentdomain.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.metrics.RecordWebhookEvent(c.Request.Context(), "malformed")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := s.webhookSvc.Handle(c.Request.Context(), payload); err != nil {
		s.log.Warn("webhook not applied",
			zap.String("payment_id", payload.PaymentID),
			zap.Error(err),
		)
		s.metrics.RecordWebhookEvent(c.Request.Context(), "rejected")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	s.metrics.RecordWebhookEvent(c.Request.Context(), payload.Status)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
