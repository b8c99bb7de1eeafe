package handlers

import (
	"errors"
	"log"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto a status code and writes it.
// Unknown errors are logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrRideNotFound),
		errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrUserNotFound):
		c.JSON(404, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrInvalidSeatCount),
		errors.Is(err, models.ErrInvalidInput):
		c.JSON(400, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrInsufficientSeats),
		errors.Is(err, models.ErrRideNotOpen),
		errors.Is(err, models.ErrRideClosed),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrRideNotDeparted),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrIdempotencyReused):
		c.JSON(409, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrNotAuthorized):
		c.JSON(403, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrInvalidCredential):
		c.JSON(401, gin.H{"error": "Invalid credentials"})

	case errors.Is(err, models.ErrConcurrentUpdateExceeded):
		c.Header("Retry-After", "1")
		c.JSON(503, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrRequestInProgress):
		c.Header("Retry-After", "1")
		c.JSON(409, gin.H{"error": err.Error()})

	default:
		log.Printf("[http] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}
