package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionAnalysis = "music_analyses"
)

// StageID identifies one feature-extraction stage. The features mapping of a
// persisted record is keyed by these values; a key is absent when the caller
// disabled the stage, which is distinct from "attempted and failed".
type StageID string

const (
	StageSpectralTimbral StageID = "spectral_timbral"
	StageDescriptors     StageID = "professional_descriptors"
	StageChords          StageID = "chord_progression"
	StageLyrics          StageID = "lyrics"
)

// StagePriority is the deterministic invocation order of the stages. Stages
// are independent of one another; the fixed order exists for reproducibility
// and log correlation only.
var StagePriority = []StageID{
	StageSpectralTimbral,
	StageDescriptors,
	StageChords,
	StageLyrics,
}

type StageStatus string

const (
	StageStatusOK     StageStatus = "ok"
	StageStatusFailed StageStatus = "failed"
)

// StageEntry is what gets recorded under a stage key: the stage's payload on
// success, or an explicit failure marker. Payload schemas vary per stage and
// are deliberately not unified here.
type StageEntry struct {
	Status    StageStatus `bson:"status" json:"status"`
	Error     string      `bson:"error,omitempty" json:"error,omitempty"`
	ElapsedMS int64       `bson:"elapsed_ms" json:"elapsed_ms"`
	Payload   interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
}

// AudioFeatures maps stage identifiers to their outcome. Only attempted
// stages appear as keys.
type AudioFeatures map[StageID]*StageEntry

// SpectralTimbralFeatures is descriptor set A: frame-based spectral, timbral
// and rhythm features.
type SpectralTimbralFeatures struct {
	SpectralCentroid  []float64  `bson:"spectral_centroid" json:"spectral_centroid"`
	SpectralBandwidth []float64  `bson:"spectral_bandwidth" json:"spectral_bandwidth"`
	SpectralRolloff   []float64  `bson:"spectral_rolloff" json:"spectral_rolloff"`
	SpectralFlatness  []float64  `bson:"spectral_flatness" json:"spectral_flatness"`
	ZeroCrossingRate  []float64  `bson:"zero_crossing_rate" json:"zero_crossing_rate"`
	RMS               []float64  `bson:"rms" json:"rms"`
	OnsetStrength     []float64  `bson:"onset_strength" json:"onset_strength"`
	OnsetTimes        []float64  `bson:"onset_times" json:"onset_times"`
	Tempo             float64    `bson:"tempo" json:"tempo"`
	BeatTimes         []float64  `bson:"beat_times" json:"beat_times"`
	ChromaMean        []float64  `bson:"chroma_mean" json:"chroma_mean"`
	FrameSize         int        `bson:"frame_size" json:"frame_size"`
	HopSize           int        `bson:"hop_size" json:"hop_size"`
}

// ProfessionalDescriptors is descriptor set B: song-level scalar descriptors.
type ProfessionalDescriptors struct {
	Loudness             float64 `bson:"loudness" json:"loudness"`
	AverageLoudness      float64 `bson:"average_loudness" json:"average_loudness"`
	DynamicComplexity    float64 `bson:"dynamic_complexity" json:"dynamic_complexity"`
	BPM                  float64 `bson:"bpm" json:"bpm"`
	OnsetRate            float64 `bson:"onset_rate" json:"onset_rate"`
	Danceability         float64 `bson:"danceability" json:"danceability"`
	KeyKey               string  `bson:"key_key" json:"key_key"`
	KeyScale             string  `bson:"key_scale" json:"key_scale"`
	KeyStrength          float64 `bson:"key_strength" json:"key_strength"`
	SpectralEnergy       float64 `bson:"spectral_energy" json:"spectral_energy"`
	SpectralComplexity   float64 `bson:"spectral_complexity" json:"spectral_complexity"`
	SpectralEntropy      float64 `bson:"spectral_entropy" json:"spectral_entropy"`
	SpectralCentroidMean float64 `bson:"spectral_centroid_mean" json:"spectral_centroid_mean"`
	HFC                  float64 `bson:"hfc" json:"hfc"`
	Dissonance           float64 `bson:"dissonance" json:"dissonance"`
	PitchSalience        float64 `bson:"pitch_salience" json:"pitch_salience"`
}

// ChordEvent is one detected chord with its onset time. Events are ordered by
// non-decreasing Time.
type ChordEvent struct {
	Time       float64 `bson:"time" json:"time"`
	Chord      string  `bson:"chord" json:"chord"`
	Duration   float64 `bson:"duration" json:"duration"`
	Confidence float64 `bson:"confidence" json:"confidence"`
}

type ChordProgression struct {
	Chords           []ChordEvent   `bson:"chords" json:"chords"`
	ChordSequence    []string       `bson:"chord_sequence" json:"chord_sequence"`
	Key              string         `bson:"key,omitempty" json:"key,omitempty"`
	Mode             string         `bson:"mode,omitempty" json:"mode,omitempty"`
	UniqueChords     []string       `bson:"unique_chords" json:"unique_chords"`
	ChordTransitions map[string]int `bson:"chord_transitions" json:"chord_transitions"`
	MostCommonChord  string         `bson:"most_common_chord,omitempty" json:"most_common_chord,omitempty"`
	AnalyzerUsed     string         `bson:"analyzer_used" json:"analyzer_used"`
	ConfidenceMean   float64        `bson:"confidence_mean" json:"confidence_mean"`
}

// LyricsSegment is one time-aligned transcription segment, start <= end,
// segments ordered by non-decreasing start.
type LyricsSegment struct {
	ID    int     `bson:"id" json:"id"`
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
	Text  string  `bson:"text" json:"text"`
}

type Lyrics struct {
	Text           string          `bson:"text" json:"text"`
	Language       string          `bson:"language,omitempty" json:"language,omitempty"`
	Segments       []LyricsSegment `bson:"segments,omitempty" json:"segments,omitempty"`
	ModelUsed      string          `bson:"model_used" json:"model_used"`
	ProcessingTime float64         `bson:"processing_time" json:"processing_time"`
}

// AnalysisRecord is the persistent unit of storage: one completed analysis
// run. Written exactly once at creation, never updated in place.
type AnalysisRecord struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Filename   string     `bson:"filename" json:"filename"`
	FileSize   int64      `bson:"file_size" json:"file_size"`
	Duration   float64    `bson:"duration" json:"duration"`
	SampleRate int        `bson:"sample_rate" json:"sample_rate"`
	Source     SourceKind `bson:"source" json:"source"`
	SourcePath string     `bson:"source_path,omitempty" json:"source_path,omitempty"`
	Format     string     `bson:"format" json:"format"`

	// Descriptive metadata is best-effort from container tags. Absent fields
	// are omitted entirely; consumers must treat absence as unknown.
	Title  *string `bson:"title,omitempty" json:"title,omitempty"`
	Artist *string `bson:"artist,omitempty" json:"artist,omitempty"`
	Album  *string `bson:"album,omitempty" json:"album,omitempty"`
	Genre  *string `bson:"genre,omitempty" json:"genre,omitempty"`
	Year   *int    `bson:"year,omitempty" json:"year,omitempty"`

	Features AudioFeatures `bson:"features" json:"features"`

	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
	ProcessingTimeTotal float64   `bson:"processing_time_total" json:"processing_time_total"`
}

// ListQuery carries validated pagination and ordering for AnalysisRepository.List.
type ListQuery struct {
	Skip   int64
	Limit  int64
	SortBy string
}

type AnalysisRepository interface {
	Create(ctx context.Context, record *AnalysisRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*AnalysisRecord, error)
	List(ctx context.Context, query ListQuery) ([]*AnalysisRecord, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type AnalysisUsecase interface {
	Analyze(ctx context.Context, source AnalysisSource, config StageConfig) (*AnalysisRecord, time.Duration, error)
	GetByID(ctx context.Context, id string) (*AnalysisRecord, error)
	List(ctx context.Context, skip, limit int64, sortBy string) ([]*AnalysisRecord, int64, error)
	Delete(ctx context.Context, id string) error
}
