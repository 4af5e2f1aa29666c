package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricelink/src/metrics"
	"pricelink/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Context keys set by the auth middleware
// -----------------------------------------------------------------------------

const (
	ctxAPIKey = "pricelink.apiKey"
	ctxPlan   = "pricelink.plan"
)

// -----------------------------------------------------------------------------

func planFromContext(c *gin.Context) *models.MPlan {
	return c.MustGet(ctxPlan).(*models.MPlan)
}

func apiKeyFromContext(c *gin.Context) string {
	return c.GetString(ctxAPIKey)
}

// -----------------------------------------------------------------------------
// apiKeyAuth resolves the caller's plan and applies the per-key rate
// limit. Rate limit state is exposed in headers on every authed response
// so clients can pace themselves; denials carry Retry-After.
// -----------------------------------------------------------------------------

func (s *APIServer) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("x-api-key"))
		if apiKey == "" && strings.HasPrefix(c.Request.URL.Path, "/v1/stream/") {
			// EventSource cannot set headers; streams may pass the key
			// as a query token instead.
			apiKey = strings.TrimSpace(c.Query("token"))
		}

		plan := s.Resolver.ResolvePlan(apiKey)
		if plan == nil {
			reason := metrics.ReasonInvalidKey
			if apiKey == "" {
				reason = metrics.ReasonMissingKey
			}
			metrics.Denied.WithLabelValues(reason).Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": "invalid or missing x-api-key",
			})
			return
		}

		decision := s.Limiter.Check(apiKey, plan.RequestsPerMinute)

		c.Header("X-Plan", plan.Name)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining()))
		c.Header("X-RateLimit-Used", strconv.Itoa(decision.Used))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetEpochSec, 10))

		if !decision.Allowed {
			metrics.Denied.WithLabelValues(metrics.ReasonRateLimit).Inc()
			retryAfter := decision.ResetEpochSec - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":              false,
				"error":           "rate limit exceeded",
				"retry_after_sec": retryAfter,
			})
			return
		}

		metrics.Requests.WithLabelValues(c.Request.URL.Path, plan.Name).Inc()

		c.Set(ctxAPIKey, apiKey)
		c.Set(ctxPlan, plan)
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// CORS Middleware
// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, x-api-key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
