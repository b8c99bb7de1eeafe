package handlers

import (
	"errors"
	"strconv"

	"github.com/chachabrian/shupool-backend/internal/middleware"
	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets a client retry a booking request safely.
const IdempotencyKeyHeader = "Idempotency-Key"

func CreateBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.GetQuery("seats")
		if !ok || raw == "" {
			c.JSON(400, gin.H{"error": "seats is required"})
			return
		}
		seats, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(400, gin.H{"error": "seats must be a number"})
			return
		}

		booking, err := bookings.CreateBooking(
			c.Request.Context(),
			c.Param("rideId"),
			c.GetString(middleware.UserIDKey),
			seats,
			c.GetHeader(IdempotencyKeyHeader),
		)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, booking)
	}
}

// CancelBooking answers 200 for a booking that was already cancelled, so
// clients can retry freely.
func CancelBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := bookings.CancelBooking(c.Request.Context(), c.Param("bookingId"), c.GetString(middleware.UserIDKey))
		if errors.Is(err, models.ErrAlreadyCancelled) {
			c.JSON(200, gin.H{
				"message":          "Booking already cancelled",
				"alreadyCancelled": true,
				"booking":          booking,
			})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{
			"message":          "Booking cancelled",
			"alreadyCancelled": false,
			"booking":          booking,
		})
	}
}

func GetPassengerBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bookings.ListForPassenger(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func GetRideBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bookings.ListForRide(c.Request.Context(), c.Param("rideId"), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func GetBookingDetails(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := bookings.GetForParticipant(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, booking)
	}
}
