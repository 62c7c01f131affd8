package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const memberIDKey = "member_id"

// MemberAuthRequired resolves the calling member from the X-Member-Id header.
// Upstream auth terminates the session; this service only needs the identity.
func (s *Server) MemberAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Member-Id"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(memberIDKey, id)
		c.Next()
	}
}

func memberID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(memberIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}

// ConfirmRateLimit throttles the public payment-confirm endpoints per member.
// When the limiter is nil (rate limiting disabled) everything passes.
func (s *Server) ConfirmRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := memberID(c)
		if !ok {
			c.Next()
			return
		}

		result, err := s.confirmLimiter.Allow(c.Request.Context(), id.String())
		if err != nil {
			// Redis trouble never blocks a payment.
			s.metrics.RecordRateLimitAllowed(c.Request.Context(), c.FullPath())
			c.Next()
			return
		}
		if !result.Allowed {
			s.metrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath())
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		s.metrics.RecordRateLimitAllowed(c.Request.Context(), c.FullPath())
		c.Next()
	}
}
