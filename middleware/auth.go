package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MaximeEsteves/backend-lesmidena/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	ClaimsKey = "claims"
	RoleAdmin = "admin"
)

// ParseToken validates an HS256 token signed with secret and returns its claims.
func ParseToken(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// AdminOnly accepts requests carrying "Authorization: Bearer <jwt>" whose role
// claim is "admin".
func AdminOnly(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			apperrors.Respond(c, apperrors.Unauthorized("Missing bearer token"))
			return
		}

		claims, err := ParseToken(strings.TrimSpace(tokenStr), key)
		if err != nil {
			apperrors.Respond(c, apperrors.Unauthorized("Invalid token"))
			return
		}
		if role, _ := claims["role"].(string); role != RoleAdmin {
			apperrors.Respond(c, apperrors.Forbidden("Admin access required"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
