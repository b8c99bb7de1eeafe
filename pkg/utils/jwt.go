package utils

import (
	"fmt"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by an access token.
type Claims struct {
	UserID   string          `json:"id"`
	Email    string          `json:"email"`
	UserType models.UserType `json:"userType"`
	jwt.RegisteredClaims
}

func GenerateToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		UserType: user.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Authenticate validates tokenString and returns its claims. Every failure
// is reported as models.ErrInvalidCredential.
func Authenticate(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredential, err)
	}
	if !token.Valid || claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, models.ErrInvalidCredential
	}
	return claims, nil
}
