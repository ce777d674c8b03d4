package usecase

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/museslab/euterpe/domain"
)

type analysisUsecase struct {
	repository domain.AnalysisRepository
	ingestor   domain.AudioIngestor
	fetcher    domain.RemoteFetcher
	stages     map[domain.StageID]domain.FeatureStage

	stageTimeout      time.Duration
	transcribeTimeout time.Duration
	contextTimeout    time.Duration
}

func NewAnalysisUsecase(
	repository domain.AnalysisRepository,
	ingestor domain.AudioIngestor,
	fetcher domain.RemoteFetcher,
	stages []domain.FeatureStage,
	stageTimeout, transcribeTimeout, contextTimeout time.Duration,
) domain.AnalysisUsecase {
	byID := make(map[domain.StageID]domain.FeatureStage, len(stages))
	for _, stage := range stages {
		byID[stage.ID()] = stage
	}
	return &analysisUsecase{
		repository:        repository,
		ingestor:          ingestor,
		fetcher:           fetcher,
		stages:            byID,
		stageTimeout:      stageTimeout,
		transcribeTimeout: transcribeTimeout,
		contextTimeout:    contextTimeout,
	}
}

// Analyze runs the full pipeline: resolve the source, decode it, fan the
// enabled stages out concurrently, then persist the assembled record.
// Ingestion and persistence errors are fatal; stage errors are recorded on
// the record and never abort the run.
func (u *analysisUsecase) Analyze(ctx context.Context, source domain.AnalysisSource, config domain.StageConfig) (*domain.AnalysisRecord, time.Duration, error) {
	started := time.Now()

	if source.Kind == domain.SourceRemote {
		path, filename, err := u.fetcher.Fetch(ctx, source.URL)
		if err != nil {
			return nil, 0, err
		}
		source.Path = path
		if source.Filename == "" {
			source.Filename = filename
		}
	}

	asset, err := u.ingestor.Ingest(ctx, source)
	if err != nil {
		// No asset to carry the cleanup, so the temp artifact goes here.
		if source.Path != "" {
			_ = os.Remove(source.Path)
		}
		return nil, 0, err
	}
	defer asset.Cleanup()

	features := u.runStages(ctx, asset, config)

	record := &domain.AnalysisRecord{
		Filename:   asset.Filename,
		FileSize:   asset.FileSize,
		Duration:   asset.Duration,
		SampleRate: asset.SampleRate,
		Source:     asset.Source,
		SourcePath: source.URL,
		Format:     asset.Format,
		Title:      asset.Tags.Title,
		Artist:     asset.Tags.Artist,
		Album:      asset.Tags.Album,
		Genre:      asset.Tags.Genre,
		Year:       asset.Tags.Year,
		Features:   features,
		CreatedAt:  time.Now().UTC(),
	}
	record.ProcessingTimeTotal = time.Since(started).Seconds()

	id, err := u.repository.Create(ctx, record)
	if err != nil {
		return nil, 0, err
	}
	record.ID = id

	return record, time.Since(started), nil
}

// runStages fans the enabled stages out, one goroutine each, and merges the
// results keyed by stage id. Disabled stages leave no key.
func (u *analysisUsecase) runStages(ctx context.Context, asset *domain.AudioAsset, config domain.StageConfig) domain.AudioFeatures {
	opts := domain.StageOptions{LanguageHint: config.LanguageHint}

	var enabled []domain.FeatureStage
	for _, id := range domain.StagePriority {
		if !config.IsEnabled(id) {
			continue
		}
		if stage, ok := u.stages[id]; ok {
			enabled = append(enabled, stage)
		}
	}

	results := make(chan domain.StageResult, len(enabled))
	var wg sync.WaitGroup
	for _, stage := range enabled {
		wg.Add(1)
		go func(stage domain.FeatureStage) {
			defer wg.Done()
			results <- u.runStage(ctx, stage, asset, opts)
		}(stage)
	}
	wg.Wait()
	close(results)

	features := make(domain.AudioFeatures, len(enabled))
	for res := range results {
		entry := &domain.StageEntry{
			Status:    res.Status,
			ElapsedMS: res.Elapsed,
			Payload:   res.Payload,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		features[res.Stage] = entry
	}
	return features
}

// runStage executes one stage under its timeout with panic containment. The
// extraction runs in an inner goroutine so a stage that ignores its context
// still yields a timeout failure instead of hanging the run.
func (u *analysisUsecase) runStage(ctx context.Context, stage domain.FeatureStage, asset *domain.AudioAsset, opts domain.StageOptions) domain.StageResult {
	timeout := u.stageTimeout
	if stage.ID() == domain.StageLyrics {
		timeout = u.transcribeTimeout
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()

	type outcome struct {
		payload interface{}
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("stage panicked: %v", r)}
			}
		}()
		payload, err := stage.Extract(stageCtx, asset, opts)
		done <- outcome{payload: payload, err: err}
	}()

	var result outcome
	select {
	case result = <-done:
	case <-stageCtx.Done():
		result = outcome{err: fmt.Errorf("%w after %s: %v", domain.ErrStageTimeout, timeout, stageCtx.Err())}
	}

	elapsed := time.Since(started).Milliseconds()
	if result.err != nil {
		log.Printf("stage %s failed on %s: %v", stage.ID(), asset.Filename, result.err)
		return domain.StageResult{Stage: stage.ID(), Status: domain.StageStatusFailed, Err: result.err, Elapsed: elapsed}
	}
	return domain.StageResult{Stage: stage.ID(), Status: domain.StageStatusOK, Payload: result.payload, Elapsed: elapsed}
}

func (u *analysisUsecase) GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, u.contextTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return u.repository.GetByID(ctx, objectID)
}

func (u *analysisUsecase) List(ctx context.Context, skip, limit int64, sortBy string) ([]*domain.AnalysisRecord, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, u.contextTimeout)
	defer cancel()

	return u.repository.List(ctx, domain.ListQuery{Skip: skip, Limit: limit, SortBy: sortBy})
}

func (u *analysisUsecase) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, u.contextTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	return u.repository.Delete(ctx, objectID)
}
