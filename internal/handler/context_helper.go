package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/middleware"
	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// requestActor attributes the request to the signed-in operator, or to fallback for public callers.
func requestActor(c *gin.Context, fallback string) models.Actor {
	return middleware.ActorFrom(c, fallback)
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
