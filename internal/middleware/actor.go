package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/models"
)

// ActorFrom attributes the current request for the audit trail. Authenticated operators
// are recorded by username, everyone else as fallback.
func ActorFrom(c *gin.Context, fallback string) models.Actor {
	name := fallback
	if claims := Claims(c); claims != nil && claims.Username != "" {
		name = claims.Username
	}
	return models.Actor{
		Name:      name,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
