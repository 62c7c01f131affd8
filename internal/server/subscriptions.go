package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
)

type startSubscriptionRequest struct {
	PlanID      string `json:"planId"`
	PriceID     string `json:"priceId"`
	TermID      string `json:"termId"`
	PaymentID   string `json:"paymentId"`
	Mode        string `json:"mode"`
	FirstAmount int64  `json:"firstAmount"`
	Currency    string `json:"currency"`
	CycleMonths int    `json:"cycleMonths"`
	Months      int    `json:"months"`
}

// StartSubscription creates the member's subscription for the plan when none
// is active yet, then runs the charge through the reconciliation flow. The
// response status field is authoritative: ok, fail, or TIMEOUT, all 200.
func (s *Server) StartSubscription(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req startSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	planCode := strings.TrimSpace(req.PlanID)
	if planCode == "" {
		AbortWithError(c, subscriptiondomain.ErrInvalidPlan)
		return
	}

	_, err := s.subscriptionSvc.FindActiveByMember(c.Request.Context(), member, planCode)
	if errors.Is(err, subscriptiondomain.ErrNotFound) {
		priceID, perr := parseOptionalID(req.PriceID, "priceId")
		if perr != nil {
			AbortWithError(c, perr)
			return
		}
		termID, perr := parseOptionalID(req.TermID, "termId")
		if perr != nil {
			AbortWithError(c, perr)
			return
		}
		profileID, perr := parseOptionalID(req.PaymentID, "paymentId")
		if perr != nil {
			AbortWithError(c, perr)
			return
		}

		currency := strings.TrimSpace(req.Currency)
		if currency == "" {
			currency = "KRW"
		}
		_, err = s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateRequest{
			MemberID:         member,
			PlanCode:         planCode,
			PriceID:          priceID,
			TermID:           termID,
			BillingProfileID: profileID,
			BillingMode:      billingMode(req.Mode),
			Amount:           req.FirstAmount,
			Currency:         currency,
			CycleMonths:      req.CycleMonths,
		})
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	outcome, err := s.reconcileSvc.ChargeAndConfirm(c.Request.Context(), member, planCode, req.Months)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.metrics.RecordPollOutcome(c.Request.Context(), outcome.Status)

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

func billingMode(raw string) subscriptiondomain.BillingMode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(subscriptiondomain.BillingModePrepaidTerm):
		return subscriptiondomain.BillingModePrepaidTerm
	default:
		return subscriptiondomain.BillingModeMonthly
	}
}

func parseOptionalID(raw, field string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return &id, nil
}
