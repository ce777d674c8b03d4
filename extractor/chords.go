package extractor

import (
	"context"
	"errors"
	"strings"

	"github.com/museslab/euterpe/domain"
)

const (
	chordFPS        = 10
	noChordLabel    = "N"
	chordAnalyzer   = "chroma-template"
	silenceRMSFloor = 1e-4
)

// ChordStage detects a chord label per analysis frame by correlating chroma
// against 24 major/minor triad templates, compresses consecutive identical
// labels into timed events and derives the summary statistics.
type ChordStage struct {
	fps int
}

func NewChordStage() *ChordStage {
	return &ChordStage{fps: chordFPS}
}

func (s *ChordStage) ID() domain.StageID { return domain.StageChords }

func (s *ChordStage) Extract(ctx context.Context, asset *domain.AudioAsset, _ domain.StageOptions) (interface{}, error) {
	if asset == nil || len(asset.Samples) == 0 {
		return nil, errors.New("no samples to analyze")
	}

	hop := asset.SampleRate / s.fps
	if hop < 1 {
		return nil, errors.New("sample rate too low for chord analysis")
	}
	frameSize := nextPow2(2 * hop)
	if len(asset.Samples) < frameSize {
		return nil, errors.New("audio shorter than one chord frame")
	}

	window := hannWindow(frameSize)
	labels := make([]string, 0, frameCount(len(asset.Samples), frameSize, hop))
	confidences := make([]float64, 0, cap(labels))

	err := eachFrame(ctx, asset.Samples, frameSize, hop, func(_ int, frame []float64) {
		if rms(frame) < silenceRMSFloor {
			labels = append(labels, noChordLabel)
			confidences = append(confidences, 0)
			return
		}
		mags := magnitudeSpectrum(frame, window)
		chroma := normalizeChroma(chromaFromSpectrum(mags, frameSize, asset.SampleRate))
		label, confidence := matchChord(chroma)
		labels = append(labels, label)
		confidences = append(confidences, confidence)
	})
	if err != nil {
		return nil, err
	}

	events := compressLabels(labels, confidences, 1.0/float64(s.fps), asset.Duration)
	return summarizeChords(events), nil
}

// chord templates: root, major third / minor third, fifth.
var (
	majorTemplate = [12]float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0}
	minorTemplate = [12]float64{1, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0}
)

// matchChord returns the best-scoring triad label ("C:maj" form) and a
// confidence in [0, 1].
func matchChord(chroma []float64) (string, float64) {
	var total float64
	for _, v := range chroma {
		total += v
	}
	if total < epsilon {
		return noChordLabel, 0
	}

	bestLabel, bestScore := noChordLabel, 0.0
	for root := 0; root < 12; root++ {
		var maj, min float64
		for pc := 0; pc < 12; pc++ {
			shifted := chroma[(pc+root)%12]
			maj += majorTemplate[pc] * shifted
			min += minorTemplate[pc] * shifted
		}
		if maj > bestScore {
			bestScore = maj
			bestLabel = pitchClasses[root] + ":maj"
		}
		if min > bestScore {
			bestScore = min
			bestLabel = pitchClasses[root] + ":min"
		}
	}

	confidence := bestScore / total
	if confidence < 0.35 {
		return noChordLabel, confidence
	}
	return bestLabel, confidence
}

// compressLabels merges runs of identical frame labels into chord events
// with onset time and duration. Event times are non-decreasing by
// construction.
func compressLabels(labels []string, confidences []float64, frameDur, totalDur float64) []domain.ChordEvent {
	var events []domain.ChordEvent
	if len(labels) == 0 {
		return events
	}

	start := 0
	confSum := confidences[0]
	for i := 1; i <= len(labels); i++ {
		if i < len(labels) && labels[i] == labels[start] {
			confSum += confidences[i]
			continue
		}
		onset := float64(start) * frameDur
		end := float64(i) * frameDur
		if i == len(labels) && totalDur > onset {
			end = totalDur
		}
		events = append(events, domain.ChordEvent{
			Time:       onset,
			Chord:      labels[start],
			Duration:   end - onset,
			Confidence: confSum / float64(i-start),
		})
		if i < len(labels) {
			start = i
			confSum = confidences[i]
		}
	}
	return events
}

// summarizeChords derives sequence, uniqueness, transition and key summaries
// from the event list. The most common chord tie-break is first-occurrence
// order.
func summarizeChords(events []domain.ChordEvent) *domain.ChordProgression {
	progression := &domain.ChordProgression{
		Chords:           events,
		ChordSequence:    make([]string, 0, len(events)),
		UniqueChords:     []string{},
		ChordTransitions: map[string]int{},
		AnalyzerUsed:     chordAnalyzer,
	}

	seen := map[string]bool{}
	counts := map[string]int{}
	var confSum float64

	for idx, ev := range events {
		progression.ChordSequence = append(progression.ChordSequence, ev.Chord)
		if !seen[ev.Chord] {
			seen[ev.Chord] = true
			progression.UniqueChords = append(progression.UniqueChords, ev.Chord)
		}
		counts[ev.Chord]++
		confSum += ev.Confidence
		if idx > 0 {
			transition := events[idx-1].Chord + " -> " + ev.Chord
			progression.ChordTransitions[transition]++
		}
	}

	if len(events) > 0 {
		progression.ConfidenceMean = confSum / float64(len(events))
	}

	// First-occurrence order of UniqueChords makes the tie-break stable.
	best, bestCount := "", 0
	for _, chord := range progression.UniqueChords {
		if counts[chord] > bestCount {
			best = chord
			bestCount = counts[chord]
		}
	}
	progression.MostCommonChord = best

	if best != "" && best != noChordLabel {
		if parts := strings.SplitN(best, ":", 2); len(parts) == 2 {
			progression.Key = parts[0]
			if parts[1] == "maj" {
				progression.Mode = "major"
			} else {
				progression.Mode = "minor"
			}
		}
	}

	return progression
}
