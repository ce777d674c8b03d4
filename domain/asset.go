package domain

import (
	"context"
)

// SourceKind tells where the analyzed bytes came from.
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceRemote SourceKind = "remote"
)

// AnalysisSource describes one input to an orchestration run: either a local
// temp file written from an upload, or a remote URL still to be fetched.
type AnalysisSource struct {
	Kind     SourceKind
	Filename string
	// Path is set for uploads (the saved temp artifact).
	Path string
	// URL is set for remote sources and kept as provenance on the record.
	URL string
}

// TagMetadata is the best-effort descriptive metadata read from container
// tags. Nil fields mean the tag was absent.
type TagMetadata struct {
	Title  *string
	Artist *string
	Album  *string
	Genre  *string
	Year   *int
}

// AudioAsset is the decoded input of one orchestration run. It is owned
// exclusively by that run and discarded when the run completes; it is never
// persisted. Stages must not mutate it.
type AudioAsset struct {
	// Samples is mono PCM in [-1, 1].
	Samples    []float64
	SampleRate int
	Duration   float64

	Filename string
	FileSize int64
	Format   string
	Source   SourceKind

	Tags TagMetadata

	// Path of the raw temp artifact backing this asset. Some stages (the
	// transcription call) operate on the file rather than the sample buffer.
	Path string

	cleanups []func()
}

// AddCleanup registers removal of a transient artifact backing the asset.
func (a *AudioAsset) AddCleanup(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// Cleanup removes every transient artifact. Safe to call more than once.
func (a *AudioAsset) Cleanup() {
	for _, fn := range a.cleanups {
		fn()
	}
	a.cleanups = nil
}

// StageConfig is the caller-supplied per-stage enable/disable switch set.
// A disabled stage is not invoked at all and leaves no key in the record.
type StageConfig struct {
	Enabled      map[StageID]bool
	LanguageHint string
}

// DefaultStageConfig enables every stage.
func DefaultStageConfig() StageConfig {
	enabled := make(map[StageID]bool, len(StagePriority))
	for _, id := range StagePriority {
		enabled[id] = true
	}
	return StageConfig{Enabled: enabled}
}

func (c StageConfig) IsEnabled(id StageID) bool {
	return c.Enabled[id]
}

// StageOptions is passed to each stage invocation.
type StageOptions struct {
	// LanguageHint is honored by the transcription stage only.
	LanguageHint string
}

// FeatureStage is the uniform contract every extraction stage implements.
// Implementations convert any underlying failure into a returned error; the
// orchestrator records it as a failed entry. A stage failure is always local
// to that stage, never fatal to the run.
type FeatureStage interface {
	ID() StageID
	Extract(ctx context.Context, asset *AudioAsset, opts StageOptions) (interface{}, error)
}

// StageResult is the ephemeral per-stage outcome collected by the
// orchestrator before assembly.
type StageResult struct {
	Stage   StageID
	Status  StageStatus
	Payload interface{}
	Err     error
	Elapsed int64 // milliseconds
}

// AudioIngestor normalizes an input file into a decodable AudioAsset. The
// caller owns the asset's cleanup.
type AudioIngestor interface {
	Ingest(ctx context.Context, source AnalysisSource) (*AudioAsset, error)
}

// RemoteFetcher downloads a remote source to a local temp artifact and
// returns its path together with the resolved filename.
type RemoteFetcher interface {
	Fetch(ctx context.Context, rawURL string) (path string, filename string, err error)
}
