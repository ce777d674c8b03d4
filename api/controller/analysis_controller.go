package controller

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/museslab/euterpe/bootstrap"
	"github.com/museslab/euterpe/domain"
)

type AnalysisController struct {
	AnalysisUsecase domain.AnalysisUsecase
	Env             *bootstrap.Env
}

func NewAnalysisController(usecase domain.AnalysisUsecase, env *bootstrap.Env) *AnalysisController {
	return &AnalysisController{AnalysisUsecase: usecase, Env: env}
}

// stageFlags reads the per-stage enable switches from the form. Every stage
// defaults to enabled; an explicit "false" disables it.
func stageFlags(ctx *gin.Context) domain.StageConfig {
	config := domain.DefaultStageConfig()
	flags := map[domain.StageID]string{
		domain.StageSpectralTimbral: "extract_spectral",
		domain.StageDescriptors:     "extract_descriptors",
		domain.StageChords:          "extract_chords",
		domain.StageLyrics:          "extract_lyrics",
	}
	for id, field := range flags {
		if raw, ok := ctx.GetPostForm(field); ok {
			if enabled, err := strconv.ParseBool(raw); err == nil {
				config.Enabled[id] = enabled
			}
		}
	}
	config.LanguageHint = ctx.PostForm("language")
	return config
}

// UploadHandler accepts a multipart upload, saves it to a temp artifact and
// runs the analysis pipeline on it.
func (c *AnalysisController) UploadHandler(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Code:    "INVALID_PARAMETERS",
			Message: "missing file field",
		})
		return
	}

	if err := os.MkdirAll(c.Env.UploadDir, 0o755); err != nil {
		ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Code:    "STORAGE_ERROR",
			Message: "cannot prepare upload directory",
		})
		return
	}

	filename := filepath.Base(file.Filename)
	dest := filepath.Join(c.Env.UploadDir, uuid.NewString()+"_"+filename)
	if err := ctx.SaveUploadedFile(file, dest); err != nil {
		ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Code:    "STORAGE_ERROR",
			Message: "cannot save uploaded file",
		})
		return
	}

	source := domain.AnalysisSource{
		Kind:     domain.SourceLocal,
		Filename: filename,
		Path:     dest,
	}
	c.analyze(ctx, source)
}

// RemoteHandler fetches a shared remote file (Drive link or bare file id)
// and runs the analysis pipeline on it.
func (c *AnalysisController) RemoteHandler(ctx *gin.Context) {
	var req struct {
		FileURL  string `form:"file_url" json:"file_url" binding:"required"`
		Filename string `form:"filename" json:"filename"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Code:    "INVALID_PARAMETERS",
			Message: "missing required parameter: file_url",
		})
		return
	}

	source := domain.AnalysisSource{
		Kind:     domain.SourceRemote,
		Filename: strings.TrimSpace(req.Filename),
		URL:      req.FileURL,
	}
	c.analyze(ctx, source)
}

func (c *AnalysisController) analyze(ctx *gin.Context, source domain.AnalysisSource) {
	config := stageFlags(ctx)

	record, elapsed, err := c.AnalysisUsecase.Analyze(ctx.Request.Context(), source, config)
	if err != nil {
		c.respondAnalysisError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, domain.SubmitAnalysisResponse{
		Status:         "completed",
		Message:        "analysis completed",
		AnalysisID:     record.ID.Hex(),
		Filename:       record.Filename,
		Duration:       record.Duration,
		ProcessingTime: elapsed.Seconds(),
	})
}

func (c *AnalysisController) respondAnalysisError(ctx *gin.Context, err error) {
	if kind, ok := domain.IsIngestionError(err); ok {
		status, code := http.StatusBadRequest, "INGESTION_FAILED"
		switch kind {
		case domain.IngestionUnsupportedFormat:
			status, code = http.StatusBadRequest, "UNSUPPORTED_FORMAT"
		case domain.IngestionSizeLimit:
			status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
		case domain.IngestionDecode:
			status, code = http.StatusUnprocessableEntity, "DECODE_FAILED"
		case domain.IngestionFetchNotFound:
			status, code = http.StatusNotFound, "REMOTE_FILE_NOT_FOUND"
		case domain.IngestionFetchDenied:
			status, code = http.StatusForbidden, "REMOTE_FILE_FORBIDDEN"
		case domain.IngestionFetch:
			status, code = http.StatusBadGateway, "REMOTE_FETCH_FAILED"
		}
		ctx.JSON(status, domain.ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
		Code:    "ANALYSIS_FAILED",
		Message: err.Error(),
	})
}

// ResultHandler returns one persisted analysis record by id.
func (c *AnalysisController) ResultHandler(ctx *gin.Context) {
	record, err := c.AnalysisUsecase.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if err == domain.ErrNotFound {
			ctx.JSON(http.StatusNotFound, domain.ErrorResponse{
				Code:    "RESOURCE_NOT_FOUND",
				Message: fmt.Sprintf("analysis %s not found", ctx.Param("id")),
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, record)
}

// ListHandler returns a paginated listing, newest first by default.
func (c *AnalysisController) ListHandler(ctx *gin.Context) {
	skip, err := strconv.ParseInt(ctx.DefaultQuery("skip", "0"), 10, 64)
	if err != nil || skip < 0 {
		ctx.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Code:    "INVALID_PARAMETERS",
			Message: "skip must be a non-negative integer",
		})
		return
	}
	limit, err := strconv.ParseInt(ctx.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Code:    "INVALID_PARAMETERS",
			Message: "limit must be a positive integer",
		})
		return
	}
	sortBy := ctx.DefaultQuery("sort_by", "created_at")

	records, total, err := c.AnalysisUsecase.List(ctx.Request.Context(), skip, limit, sortBy)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: err.Error(),
		})
		return
	}

	if records == nil {
		records = []*domain.AnalysisRecord{}
	}
	ctx.JSON(http.StatusOK, domain.ListAnalysesResponse{
		Total:   total,
		Skip:    skip,
		Limit:   limit,
		Results: records,
	})
}

// DeleteHandler removes one persisted record.
func (c *AnalysisController) DeleteHandler(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.AnalysisUsecase.Delete(ctx.Request.Context(), id); err != nil {
		if err == domain.ErrNotFound {
			ctx.JSON(http.StatusNotFound, domain.ErrorResponse{
				Code:    "RESOURCE_NOT_FOUND",
				Message: fmt.Sprintf("analysis %s not found", id),
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Code:    "DELETE_FAILED",
			Message: err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "deleted",
		"message": fmt.Sprintf("analysis %s deleted", id),
	})
}
