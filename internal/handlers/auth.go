package handlers

import (
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		user, token, err := users.Register(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"message": "User created successfully",
			"token":   token,
			"user":    user,
		})
	}
}

func Login(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		user, token, err := users.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"token": token,
			"user":  user,
		})
	}
}
