package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"reward-guard-backend/internal/guard"
	"reward-guard-backend/internal/models"
	"reward-guard-backend/internal/ratelimit"
)

// SettingsProvider reports whether maintenance mode is active. The provider
// itself decides what to do when its backing store is down (fail open).
type SettingsProvider interface {
	IsMaintenanceMode(ctx context.Context) bool
}

// Guard middleware order matters and is fixed: maintenance -> rate limit ->
// CSRF. Rate limiting runs before anything expensive so abusive traffic is
// bounded early; CSRF runs before any state mutation.

// MaintenanceMiddleware rejects non-privileged callers while maintenance is
// active. Operators holding the admin token pass through.
func MaintenanceMiddleware(settings SettingsProvider, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings.IsMaintenanceMode(c.Request.Context()) {
			if adminToken == "" || c.GetHeader("X-Admin-Token") != adminToken {
				c.JSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   string(models.KindMaintenance),
				})
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RateLimitMiddleware enforces the per-IP token bucket.
func RateLimitMiddleware(bucket *ratelimit.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bucket.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       string(models.KindRateLimited),
				"retry_after": bucket.Window().Seconds(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CSRFMiddleware validates the double-submit pair on mutating requests. Safe
// methods pass through inside Validate.
func CSRFMiddleware(csrfGuard *guard.CSRFGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := csrfGuard.Validate(c.Request); err != nil {
			kind := models.KindOf(err)
			c.JSON(models.HTTPStatus(kind), gin.H{
				"success": false,
				"error":   string(kind),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
