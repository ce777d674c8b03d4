// Package extractor implements the feature extraction stages: frame-based
// spectral/timbral features, song-level descriptors, chord progression
// detection and Whisper transcription.
package extractor

import "github.com/museslab/euterpe/domain"

// NewStages builds the full stage set in priority order. Stages are
// stateless after construction and safe for concurrent use.
func NewStages(openAIKey string) []domain.FeatureStage {
	return []domain.FeatureStage{
		NewSpectralStage(),
		NewDescriptorStage(),
		NewChordStage(),
		NewLyricsStage(openAIKey),
	}
}
