package middleware

import (
	"net/http"
	"strings"
	"time"

	"slotify/internal/shared/config"
	"slotify/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// JWTAuth creates a JWT authentication middleware
func JWTAuth() gin.HandlerFunc {
	return JWTAuthWithConfig(config.Load())
}

// JWTAuthWithConfig validates the bearer token and puts the shopper identity
// on the request context. Every session and booking route requires it.
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token claims", nil, nil)
			c.Abort()
			return
		}
		shopperID, _ := claims["shopper_id"].(string)
		if shopperID == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "token carries no shopper identity", nil, nil)
			c.Abort()
			return
		}

		c.Set("shopper_id", shopperID)
		c.Next()
	}
}

// NewGuestToken mints a short-lived token for an anonymous shopper. Checkout
// does not require an account; the token just keeps one browser's sessions
// and bookings together.
func NewGuestToken(cfg *config.Config) (string, string, error) {
	shopperID := "guest-" + uuid.New().String()
	now := time.Now()

	claims := jwt.MapClaims{
		"shopper_id": shopperID,
		"iat":        now.Unix(),
		"exp":        now.Add(cfg.JWT.JWTExpiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		return "", "", err
	}
	return shopperID, signed, nil
}
