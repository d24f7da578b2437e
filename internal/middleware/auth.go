package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/utils"
)

const viewerKey = "viewer"

// AuthMiddleware creates a middleware for JWT authentication. The verified token is
// kept so calls to the scheduling backend are made on the caller's behalf.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set(viewerKey, claims.Viewer())
		c.Request = c.Request.WithContext(backend.WithBearer(c.Request.Context(), tokenString))

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, exists := GetViewerFromContext(c)
		if !exists {
			utils.InternalServerError(c, "Viewer not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if viewer.Role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			utils.Forbidden(c, "You do not have permission to access this resource.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetViewerFromContext returns the authenticated viewer.
func GetViewerFromContext(c *gin.Context) (models.Viewer, bool) {
	v, exists := c.Get(viewerKey)
	if !exists {
		return models.Viewer{}, false
	}
	viewer, ok := v.(models.Viewer)
	return viewer, ok
}
