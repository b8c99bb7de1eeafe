package handlers

import (
	"github.com/chachabrian/shupool-backend/internal/middleware"
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func GetProfile(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Get(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, user)
	}
}

func UpdateProfile(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.ProfileUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		user, err := users.UpdateProfile(c.Request.Context(), c.GetString(middleware.UserIDKey), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, user)
	}
}

// UploadProfilePicture expects a multipart form with the image in "file".
func UploadProfilePicture(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(400, gin.H{"error": "Image file is required"})
			return
		}

		user, err := users.SetProfilePicture(c.Request.Context(), c.GetString(middleware.UserIDKey), file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, user)
	}
}

func GetPublicProfile(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := users.PublicProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, profile)
	}
}
