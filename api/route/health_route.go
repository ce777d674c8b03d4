package route

import (
	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/api/controller"
	"github.com/museslab/euterpe/mongo"
)

func NewHealthRouter(client mongo.Client, engine *gin.Engine) {
	ctrl := controller.NewHealthController(client)

	engine.GET("/health", ctrl.HealthHandler)
	engine.GET("/health/ready", ctrl.ReadyHandler)
}
