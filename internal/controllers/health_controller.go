package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthController struct{ version string }

func NewHealthController(version string) *healthController {
	return &healthController{version}
}

func (h *healthController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
