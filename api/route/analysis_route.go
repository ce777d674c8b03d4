package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/api/controller"
	"github.com/museslab/euterpe/bootstrap"
	"github.com/museslab/euterpe/domain"
	"github.com/museslab/euterpe/extractor"
	"github.com/museslab/euterpe/ingest"
	"github.com/museslab/euterpe/mongo"
	"github.com/museslab/euterpe/repository"
	"github.com/museslab/euterpe/usecase"
)

func NewAnalysisRouter(env *bootstrap.Env, timeout time.Duration, db mongo.Database, group *gin.RouterGroup) {
	repo := repository.NewAnalysisRepository(db, domain.CollectionAnalysis)
	ingestor := ingest.NewIngestor(env.UploadDir, env.MaxUploadSizeMB)
	fetcher := ingest.NewRemoteFetcher(env.UploadDir, env.MaxUploadSizeMB)
	stages := extractor.NewStages(env.OpenAIAPIKey)

	uc := usecase.NewAnalysisUsecase(
		repo,
		ingestor,
		fetcher,
		stages,
		time.Duration(env.StageTimeoutSec)*time.Second,
		time.Duration(env.TranscribeTimeoutSec)*time.Second,
		timeout,
	)
	ctrl := controller.NewAnalysisController(uc, env)

	analysisGroup := group.Group("/analysis")
	{
		analysisGroup.POST("/upload", ctrl.UploadHandler)
		analysisGroup.POST("/remote", ctrl.RemoteHandler)
		analysisGroup.GET("/results/:id", ctrl.ResultHandler)
		analysisGroup.GET("/list", ctrl.ListHandler)
		analysisGroup.DELETE("/delete/:id", ctrl.DeleteHandler)
	}
}
