package handlers

import (
	"github.com/gin-gonic/gin"

	"reward-guard-backend/internal/models"
)

func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	c.JSON(models.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   string(kind),
	})
}
