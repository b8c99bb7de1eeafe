package handlers

import (
	"github.com/chachabrian/shupool-backend/internal/middleware"
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Rides     *services.RideService
	Bookings  *services.BookingService
	Users     *services.UserService
	JWTSecret string
	// UploadDir is served under /uploads when set.
	UploadDir string
	Checks    map[string]HealthCheck
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", IdempotencyKeyHeader}
	config.ExposeHeaders = []string{"Retry-After"}
	r.Use(cors.New(config))

	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	r.GET("/health", Health(d.Checks))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", Register(d.Users))
			auth.POST("/login", Login(d.Users))
		}

		// Ride browsing is public.
		api.GET("/rides", GetAvailableRides(d.Rides))
		api.GET("/rides/search", SearchRides(d.Rides))
		api.GET("/rides/:id", GetRide(d.Rides))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(d.JWTSecret))
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", GetProfile(d.Users))
				users.PUT("/profile", UpdateProfile(d.Users))
				users.POST("/profile/picture", UploadProfilePicture(d.Users))
				users.GET("/:id", GetPublicProfile(d.Users))
			}

			rides := protected.Group("/rides")
			{
				rides.POST("/offer", CreateRide(d.Rides))
				rides.GET("/my-rides", GetDriverRides(d.Rides))
				rides.PUT("/:id/status", UpdateRideStatus(d.Rides))
			}

			bookings := protected.Group("/bookings")
			{
				bookings.POST("/book/:rideId", CreateBooking(d.Bookings))
				bookings.POST("/cancel/:bookingId", CancelBooking(d.Bookings))
				bookings.GET("/my-bookings", GetPassengerBookings(d.Bookings))
				bookings.GET("/ride/:rideId", GetRideBookings(d.Bookings))
				bookings.GET("/details/:id", GetBookingDetails(d.Bookings))
			}
		}
	}
	return r
}
