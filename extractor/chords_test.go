package extractor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museslab/euterpe/domain"
)

func chromaFor(pcs ...int) []float64 {
	chroma := make([]float64, 12)
	for _, pc := range pcs {
		chroma[pc] = 1
	}
	return chroma
}

func TestMatchChordTriads(t *testing.T) {
	label, confidence := matchChord(chromaFor(0, 4, 7)) // C E G
	assert.Equal(t, "C:maj", label)
	assert.Greater(t, confidence, 0.9)

	label, _ = matchChord(chromaFor(9, 0, 4)) // A C E
	assert.Equal(t, "A:min", label)

	label, _ = matchChord(chromaFor(7, 11, 2)) // G B D
	assert.Equal(t, "G:maj", label)
}

func TestMatchChordRejectsNoise(t *testing.T) {
	flat := make([]float64, 12)
	for i := range flat {
		flat[i] = 1
	}
	label, _ := matchChord(flat)
	assert.Equal(t, noChordLabel, label)

	label, confidence := matchChord(make([]float64, 12))
	assert.Equal(t, noChordLabel, label)
	assert.Zero(t, confidence)
}

func TestCompressLabelsMergesRuns(t *testing.T) {
	labels := []string{"C:maj", "C:maj", "A:min", "A:min", "A:min"}
	confs := []float64{0.8, 0.6, 0.9, 0.9, 0.9}

	events := compressLabels(labels, confs, 0.1, 0.55)
	require.Len(t, events, 2)

	assert.Equal(t, "C:maj", events[0].Chord)
	assert.InDelta(t, 0.0, events[0].Time, 1e-9)
	assert.InDelta(t, 0.2, events[0].Duration, 1e-9)
	assert.InDelta(t, 0.7, events[0].Confidence, 1e-9)

	assert.Equal(t, "A:min", events[1].Chord)
	assert.InDelta(t, 0.2, events[1].Time, 1e-9)
	// Final event stretches to the asset duration.
	assert.InDelta(t, 0.35, events[1].Duration, 1e-9)

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Time, events[i-1].Time)
	}
}

func TestSummarizeChords(t *testing.T) {
	events := []domain.ChordEvent{
		{Time: 0.0, Chord: "C:maj", Duration: 1, Confidence: 0.8},
		{Time: 1.0, Chord: "A:min", Duration: 1, Confidence: 0.6},
		{Time: 2.0, Chord: "C:maj", Duration: 1, Confidence: 0.8},
		{Time: 3.0, Chord: "A:min", Duration: 1, Confidence: 0.6},
	}

	summary := summarizeChords(events)

	assert.Equal(t, []string{"C:maj", "A:min", "C:maj", "A:min"}, summary.ChordSequence)
	assert.Equal(t, []string{"C:maj", "A:min"}, summary.UniqueChords)
	assert.Equal(t, 2, summary.ChordTransitions["C:maj -> A:min"])
	assert.Equal(t, 1, summary.ChordTransitions["A:min -> C:maj"])

	// Equal counts: the first-seen chord wins.
	assert.Equal(t, "C:maj", summary.MostCommonChord)
	assert.Equal(t, "C", summary.Key)
	assert.Equal(t, "major", summary.Mode)
	assert.InDelta(t, 0.7, summary.ConfidenceMean, 1e-9)
	assert.Equal(t, chordAnalyzer, summary.AnalyzerUsed)
}

func TestSummarizeChordsEmpty(t *testing.T) {
	summary := summarizeChords(nil)

	assert.Empty(t, summary.ChordSequence)
	assert.Empty(t, summary.UniqueChords)
	assert.Empty(t, summary.MostCommonChord)
	assert.Empty(t, summary.Key)
	assert.Zero(t, summary.ConfidenceMean)
}

func TestSummarizeChordsNoChordOnlyLeavesKeyEmpty(t *testing.T) {
	summary := summarizeChords([]domain.ChordEvent{
		{Time: 0, Chord: noChordLabel, Duration: 2},
	})
	assert.Equal(t, noChordLabel, summary.MostCommonChord)
	assert.Empty(t, summary.Key)
	assert.Empty(t, summary.Mode)
}

func TestChordStageOnTriadSignal(t *testing.T) {
	const sampleRate = 22050
	// Three seconds of a C major triad (C4, E4, G4).
	samples := make([]float64, sampleRate*3)
	for _, freq := range []float64{261.63, 329.63, 392.00} {
		for i := range samples {
			samples[i] += math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) / 3
		}
	}
	asset := &domain.AudioAsset{
		Samples:    samples,
		SampleRate: sampleRate,
		Duration:   3,
		Filename:   "triad.wav",
	}

	payload, err := NewChordStage().Extract(context.Background(), asset, domain.StageOptions{})
	require.NoError(t, err)

	progression, ok := payload.(*domain.ChordProgression)
	require.True(t, ok)
	require.NotEmpty(t, progression.Chords)

	assert.Equal(t, "C:maj", progression.MostCommonChord)
	assert.Equal(t, "C", progression.Key)
	assert.Equal(t, "major", progression.Mode)
}

func TestChordStageRejectsShortAudio(t *testing.T) {
	asset := &domain.AudioAsset{Samples: make([]float64, 16), SampleRate: 22050, Duration: 0.001}
	_, err := NewChordStage().Extract(context.Background(), asset, domain.StageOptions{})
	assert.Error(t, err)
}
