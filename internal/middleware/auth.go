package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/comms-gateway/internal/common"
	"github.com/pulsehq/comms-gateway/pkg/jwt"
)

// JWTAuth JWT authentication middleware. The raw bearer token is kept in the
// context because the gateway forwards it to the upstream store on every
// fetch — upstream authorization stays the caller's own.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponse(c, 401, "Missing authorization header", nil)
			c.Abort()
			return
		}

		// 2. Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponse(c, 401, "Invalid authorization header format", nil)
			c.Abort()
			return
		}

		tokenString := parts[1]

		// 3. Verify token
		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, 401, "Token expired", err)
			} else {
				common.ErrorResponse(c, 401, "Invalid token", err)
			}
			c.Abort()
			return
		}

		// 4. Store caller info in context
		c.Set("userID", claims.UserID)
		c.Set("userName", claims.Name)
		c.Set("companyID", claims.CompanyID)
		c.Set("bearerToken", tokenString)

		c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetCompanyID extracts the caller's tenant ID from context
func GetCompanyID(c *gin.Context) string {
	companyID, exists := c.Get("companyID")
	if !exists {
		return ""
	}
	if str, ok := companyID.(string); ok {
		return str
	}
	return ""
}

// GetUserName extracts display name from context
func GetUserName(c *gin.Context) string {
	name, exists := c.Get("userName")
	if !exists {
		return ""
	}
	if str, ok := name.(string); ok {
		return str
	}
	return ""
}

// GetBearerToken extracts the raw bearer token from context
func GetBearerToken(c *gin.Context) string {
	token, exists := c.Get("bearerToken")
	if !exists {
		return ""
	}
	if str, ok := token.(string); ok {
		return str
	}
	return ""
}
