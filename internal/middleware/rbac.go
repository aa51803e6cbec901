package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

// RequireRoles admits operators holding one of roles. SUPERADMIN is always admitted.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	allowed[models.RoleSuperAdmin] = struct{}{}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
