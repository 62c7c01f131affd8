package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
)

type createBillingKeyRequest struct {
	CustomerID string `json:"customerId"`
	BillingKey string `json:"billingKey"`
	PG         string `json:"pg"`
	CardBrand  string `json:"cardBrand"`
	CardBin    string `json:"cardBin"`
	CardLast4  string `json:"cardLast4"`
}

func (s *Server) CreateBillingKey(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createBillingKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	profile, err := s.billingProfileSvc.Upsert(c.Request.Context(), billingprofiledomain.UpsertRequest{
		MemberID:           member,
		ExternalCustomerID: strings.TrimSpace(req.CustomerID),
		PG:                 strings.TrimSpace(req.PG),
		CardBrand:          strings.TrimSpace(req.CardBrand),
		CardBin:            strings.TrimSpace(req.CardBin),
		CardLast4:          strings.TrimSpace(req.CardLast4),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if key := strings.TrimSpace(req.BillingKey); key != "" {
		if err := s.billingProfileSvc.SetBillingKey(c.Request.Context(), profile.ID, key); err != nil {
			AbortWithError(c, err)
			return
		}
		profile.BillingKey = &key
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) ListBillingKeys(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	profiles, err := s.billingProfileSvc.ListByMember(c.Request.Context(), member)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profiles})
}

func (s *Server) DeleteBillingKey(c *gin.Context) {
	member, ok := memberID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	profileID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_profile_id", "invalid profile id"))
		return
	}

	if err := s.billingProfileSvc.Deactivate(c.Request.Context(), member, profileID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
