package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/mongo"
)

type HealthController struct {
	Client mongo.Client
}

func NewHealthController(client mongo.Client) *HealthController {
	return &HealthController{Client: client}
}

// HealthHandler is a liveness probe: process up, no dependencies checked.
func (c *HealthController) HealthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler is a readiness probe: the database must answer a ping.
func (c *HealthController) ReadyHandler(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.Client.Ping(pingCtx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"message": "database unreachable",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
