package handlers

import (
	"github.com/chachabrian/shupool-backend/internal/middleware"
	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateRide handles the creation of a new ride by a driver
func CreateRide(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateRideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ride, err := rides.CreateRide(c.Request.Context(), c.GetString(middleware.UserIDKey), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, ride)
	}
}

// GetAvailableRides lists every OPEN ride.
func GetAvailableRides(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := rides.ListOpen(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func SearchRides(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := rides.Search(c.Request.Context(), c.Query("origin"), c.Query("destination"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func GetRide(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride, err := rides.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, ride)
	}
}

// GetDriverRides lists the rides offered by the caller.
func GetDriverRides(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := rides.ListForDriver(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

// UpdateRideStatus takes the new status from the status query parameter.
func UpdateRideStatus(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := models.ParseRideStatus(c.Query("status"))
		if !ok {
			c.JSON(400, gin.H{"error": "status must be one of OPEN, FULL, CANCELLED, COMPLETED"})
			return
		}

		ride, err := rides.SetStatus(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, ride)
	}
}
