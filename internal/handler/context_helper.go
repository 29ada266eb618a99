package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gestionmatricula/matricula-api/internal/middleware"
	"github.com/gestionmatricula/matricula-api/internal/models"
)

// currentUser extracts the authenticated user's claims from the context.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
