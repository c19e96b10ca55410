package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/ratelimit"
	"github.com/Smashkat12/crechebooks-sub003/internal/interfaces/http/dto"
)

// RateLimit returns an inbound rate limiting middleware over the shared
// sliding-window limiter. Authenticated requests are limited per tenant so
// one creche cannot starve another; unauthenticated ones fall back to the
// client IP.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		if tenantID := GetJWTTenantID(c); tenantID != "" {
			return tenantID
		}
		return "ip:" + c.ClientIP()
	})
}

// RateLimitByKey returns a rate limiting middleware with a custom key
// extractor. A limiter store failure lets the request through: availability
// over strict limiting.
func RateLimitByKey(limiter *ratelimit.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		res, err := limiter.AcquireSlot(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
			resp := dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			resp.Error.RetryAfterSeconds = res.RetryAfterSeconds
			c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
			return
		}

		c.Next()
	}
}
