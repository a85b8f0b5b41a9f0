package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Context keys set by the auth middleware
const (
	CompanyIDContextKey  = "company_id"
	EmployeeIDContextKey = "employee_id"
)

// JWTAuth validates tokens issued by the platform's auth service and stores
// the caller's company scope on the request context. All read endpoints are
// scoped to that company.
func JWTAuth(secret string, log *logrus.Logger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization header format. Expected: 'Bearer {token}'",
			})
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				log.WithError(err).Warn("Invalid token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		companyID, ok := claims["company_id"].(string)
		if !ok || companyID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing company scope"})
			c.Abort()
			return
		}
		c.Set(CompanyIDContextKey, companyID)

		if employeeID, ok := claims["employee_id"].(string); ok {
			c.Set(EmployeeIDContextKey, employeeID)
		}

		c.Next()
	}
}

// CompanyID returns the authenticated company scope for the request.
func CompanyID(c *gin.Context) string {
	return c.GetString(CompanyIDContextKey)
}
