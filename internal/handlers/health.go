package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings one backing dependency.
type HealthCheck func(ctx context.Context) error

// Health reports 200 when every check passes and 503 otherwise.
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := 200
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = 503
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != 200 {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
