package extractor

import (
	"context"
	"errors"
	"math"

	"github.com/museslab/euterpe/domain"
)

const (
	defaultFrameSize = 2048
	defaultHopSize   = 512
	rolloffFraction  = 0.85
)

// SpectralStage computes descriptor set A: frame-based spectral shape,
// timbre and rhythm features.
type SpectralStage struct {
	frameSize int
	hopSize   int
}

func NewSpectralStage() *SpectralStage {
	return &SpectralStage{frameSize: defaultFrameSize, hopSize: defaultHopSize}
}

func (s *SpectralStage) ID() domain.StageID { return domain.StageSpectralTimbral }

func (s *SpectralStage) Extract(ctx context.Context, asset *domain.AudioAsset, _ domain.StageOptions) (interface{}, error) {
	if asset == nil || len(asset.Samples) < s.frameSize {
		return nil, errors.New("audio shorter than one analysis frame")
	}

	window := hannWindow(s.frameSize)
	count := frameCount(len(asset.Samples), s.frameSize, s.hopSize)

	features := &domain.SpectralTimbralFeatures{
		SpectralCentroid:  make([]float64, 0, count),
		SpectralBandwidth: make([]float64, 0, count),
		SpectralRolloff:   make([]float64, 0, count),
		SpectralFlatness:  make([]float64, 0, count),
		ZeroCrossingRate:  make([]float64, 0, count),
		RMS:               make([]float64, 0, count),
		FrameSize:         s.frameSize,
		HopSize:           s.hopSize,
	}

	spectra := make([][]float64, 0, count)
	chromaSum := make([]float64, 12)

	err := eachFrame(ctx, asset.Samples, s.frameSize, s.hopSize, func(_ int, frame []float64) {
		mags := magnitudeSpectrum(frame, window)
		spectra = append(spectra, mags)

		centroid, bandwidth := spectralMoments(mags, s.frameSize, asset.SampleRate)
		features.SpectralCentroid = append(features.SpectralCentroid, centroid)
		features.SpectralBandwidth = append(features.SpectralBandwidth, bandwidth)
		features.SpectralRolloff = append(features.SpectralRolloff, spectralRolloff(mags, s.frameSize, asset.SampleRate))
		features.SpectralFlatness = append(features.SpectralFlatness, spectralFlatness(mags))
		features.ZeroCrossingRate = append(features.ZeroCrossingRate, zeroCrossingRate(frame))
		features.RMS = append(features.RMS, rms(frame))

		for pc, v := range chromaFromSpectrum(mags, s.frameSize, asset.SampleRate) {
			chromaSum[pc] += v
		}
	})
	if err != nil {
		return nil, err
	}

	features.OnsetStrength = onsetEnvelope(spectra)
	frameDur := float64(s.hopSize) / float64(asset.SampleRate)
	for _, idx := range pickOnsets(features.OnsetStrength) {
		features.OnsetTimes = append(features.OnsetTimes, float64(idx)*frameDur)
	}

	tempo, _ := estimateTempo(features.OnsetStrength, asset.SampleRate, s.hopSize)
	features.Tempo = tempo
	features.BeatTimes = beatTimes(features.OnsetTimes, tempo)

	features.ChromaMean = normalizeChroma(chromaSum)

	return features, nil
}

// beatTimes thins onsets to a beat grid: successive beats must be at least
// 70% of the tempo period apart.
func beatTimes(onsets []float64, tempo float64) []float64 {
	if tempo <= 0 || len(onsets) == 0 {
		return nil
	}
	period := 60 / tempo
	beats := []float64{onsets[0]}
	for _, t := range onsets[1:] {
		if t-beats[len(beats)-1] >= 0.7*period {
			beats = append(beats, t)
		}
	}
	return beats
}

func spectralMoments(mags []float64, fftSize, sampleRate int) (centroid, bandwidth float64) {
	var weighted, total float64
	for bin, m := range mags {
		weighted += binFrequency(bin, fftSize, sampleRate) * m
		total += m
	}
	if total < epsilon {
		return 0, 0
	}
	centroid = weighted / total

	var spread float64
	for bin, m := range mags {
		d := binFrequency(bin, fftSize, sampleRate) - centroid
		spread += d * d * m
	}
	bandwidth = math.Sqrt(spread / total)
	return centroid, bandwidth
}

func spectralRolloff(mags []float64, fftSize, sampleRate int) float64 {
	var total float64
	for _, m := range mags {
		total += m
	}
	if total < epsilon {
		return 0
	}
	target := rolloffFraction * total
	var cum float64
	for bin, m := range mags {
		cum += m
		if cum >= target {
			return binFrequency(bin, fftSize, sampleRate)
		}
	}
	return binFrequency(len(mags)-1, fftSize, sampleRate)
}

// spectralFlatness is the geometric over arithmetic mean of the spectrum
// (Wiener entropy): 1 for noise, towards 0 for tones.
func spectralFlatness(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, m := range mags {
		v := m + epsilon
		logSum += math.Log(v)
		sum += v
	}
	geo := math.Exp(logSum / float64(len(mags)))
	arith := sum / float64(len(mags))
	return geo / arith
}

func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

func rms(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}
