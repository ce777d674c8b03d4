package route

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/api/middleware"
	"github.com/museslab/euterpe/bootstrap"
	"github.com/museslab/euterpe/mongo"
)

func Setup(env *bootstrap.Env, timeout time.Duration, db mongo.Database, engine *gin.Engine) {
	engine.Use(middleware.Cors(env.CORSOrigins))

	engine.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"service": "euterpe",
			"message": "music analysis service",
			"endpoints": gin.H{
				"upload":  "POST /api/analysis/upload",
				"remote":  "POST /api/analysis/remote",
				"results": "GET /api/analysis/results/:id",
				"list":    "GET /api/analysis/list",
				"delete":  "DELETE /api/analysis/delete/:id",
				"health":  "GET /health",
			},
		})
	})

	NewHealthRouter(db.Client(), engine)

	apiGroup := engine.Group("/api")
	if env.AccessTokenSecret != "" {
		apiGroup.Use(middleware.JwtAuthMiddleware(env.AccessTokenSecret))
	}

	NewAnalysisRouter(env, timeout, db, apiGroup)
}
