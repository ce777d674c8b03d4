package extractor

import (
	"context"
	"errors"
	"math"

	"github.com/museslab/euterpe/domain"
)

// DescriptorStage computes descriptor set B: song-level scalar descriptors
// in the vein of professional feature suites (loudness, dynamics, rhythm,
// key, spectral statistics).
type DescriptorStage struct {
	frameSize int
	hopSize   int
}

func NewDescriptorStage() *DescriptorStage {
	return &DescriptorStage{frameSize: defaultFrameSize, hopSize: defaultHopSize}
}

func (s *DescriptorStage) ID() domain.StageID { return domain.StageDescriptors }

func (s *DescriptorStage) Extract(ctx context.Context, asset *domain.AudioAsset, _ domain.StageOptions) (interface{}, error) {
	if asset == nil || len(asset.Samples) < s.frameSize {
		return nil, errors.New("audio shorter than one analysis frame")
	}

	window := hannWindow(s.frameSize)
	count := frameCount(len(asset.Samples), s.frameSize, s.hopSize)

	var (
		spectra     = make([][]float64, 0, count)
		frameRMS    = make([]float64, 0, count)
		loudnessDB  = make([]float64, 0, count)
		centroids   = make([]float64, 0, count)
		entropies   = make([]float64, 0, count)
		complexity  = make([]float64, 0, count)
		hfcValues   = make([]float64, 0, count)
		dissonances = make([]float64, 0, count)
		saliences   = make([]float64, 0, count)
		energySum   float64
		chromaSum   = make([]float64, 12)
	)

	err := eachFrame(ctx, asset.Samples, s.frameSize, s.hopSize, func(_ int, frame []float64) {
		mags := magnitudeSpectrum(frame, window)
		spectra = append(spectra, mags)

		r := rms(frame)
		frameRMS = append(frameRMS, r)
		loudnessDB = append(loudnessDB, 20*math.Log10(r+epsilon))

		centroid, _ := spectralMoments(mags, s.frameSize, asset.SampleRate)
		centroids = append(centroids, centroid)
		entropies = append(entropies, spectralEntropy(mags))
		hfcValues = append(hfcValues, highFrequencyContent(mags))

		peaks := spectralPeaks(mags, s.frameSize, asset.SampleRate)
		complexity = append(complexity, float64(len(peaks)))
		dissonances = append(dissonances, pairwiseDissonance(peaks))
		saliences = append(saliences, pitchSalience(mags))

		var frameEnergy float64
		for _, m := range mags {
			frameEnergy += m * m
		}
		energySum += frameEnergy

		for pc, v := range chromaFromSpectrum(mags, s.frameSize, asset.SampleRate) {
			chromaSum[pc] += v
		}
	})
	if err != nil {
		return nil, err
	}

	env := onsetEnvelope(spectra)
	bpm, regularity := estimateTempo(env, asset.SampleRate, s.hopSize)
	onsets := pickOnsets(env)

	key, scale, strength := estimateKey(chromaSum)

	descriptors := &domain.ProfessionalDescriptors{
		Loudness:             meanOf(loudnessDB),
		AverageLoudness:      meanOf(frameRMS),
		DynamicComplexity:    stdOf(loudnessDB),
		BPM:                  bpm,
		OnsetRate:            float64(len(onsets)) / asset.Duration,
		Danceability:         regularity,
		KeyKey:               key,
		KeyScale:             scale,
		KeyStrength:          strength,
		SpectralEnergy:       energySum / float64(len(spectra)),
		SpectralComplexity:   meanOf(complexity),
		SpectralEntropy:      meanOf(entropies),
		SpectralCentroidMean: meanOf(centroids),
		HFC:                  meanOf(hfcValues),
		Dissonance:           meanOf(dissonances),
		PitchSalience:        meanOf(saliences),
	}

	return descriptors, nil
}

// spectralEntropy is the Shannon entropy of the normalized power spectrum,
// normalized to [0, 1].
func spectralEntropy(mags []float64) float64 {
	var total float64
	for _, m := range mags {
		total += m * m
	}
	if total < epsilon {
		return 0
	}
	var entropy float64
	for _, m := range mags {
		p := m * m / total
		if p > epsilon {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy / math.Log2(float64(len(mags)))
}

// highFrequencyContent weights each bin's energy by its index (Masri HFC).
func highFrequencyContent(mags []float64) float64 {
	var hfc float64
	for bin, m := range mags {
		hfc += float64(bin) * m * m
	}
	return hfc
}

type spectralPeak struct {
	freq float64
	mag  float64
}

// spectralPeaks picks local maxima above 1% of the frame's strongest bin,
// capped at 30 peaks.
func spectralPeaks(mags []float64, fftSize, sampleRate int) []spectralPeak {
	var maxMag float64
	for _, m := range mags {
		if m > maxMag {
			maxMag = m
		}
	}
	if maxMag < epsilon {
		return nil
	}
	threshold := 0.01 * maxMag

	var peaks []spectralPeak
	for bin := 1; bin < len(mags)-1 && len(peaks) < 30; bin++ {
		if mags[bin] > threshold && mags[bin] >= mags[bin-1] && mags[bin] > mags[bin+1] {
			peaks = append(peaks, spectralPeak{
				freq: binFrequency(bin, fftSize, sampleRate),
				mag:  mags[bin],
			})
		}
	}
	return peaks
}

// pairwiseDissonance sums Plomp-Levelt roughness over peak pairs, weighted by
// the peaks' magnitudes, normalized to [0, 1].
func pairwiseDissonance(peaks []spectralPeak) float64 {
	if len(peaks) < 2 {
		return 0
	}
	var total, weight float64
	for i := 0; i < len(peaks); i++ {
		for j := i + 1; j < len(peaks); j++ {
			w := peaks[i].mag * peaks[j].mag
			total += plompLevelt(peaks[i].freq, peaks[j].freq) * w
			weight += w
		}
	}
	if weight < epsilon {
		return 0
	}
	return total / weight
}

// plompLevelt approximates the sensory roughness of two partials.
func plompLevelt(f1, f2 float64) float64 {
	if f1 > f2 {
		f1, f2 = f2, f1
	}
	// Critical bandwidth around the lower partial.
	cbw := 1.72*math.Pow(f1, 0.65) + epsilon
	x := (f2 - f1) / cbw
	return math.Exp(-3.5*x) - math.Exp(-5.75*x)
}

// pitchSalience is the height of the strongest non-zero-lag peak of the
// spectrum's autocorrelation, relative to lag zero.
func pitchSalience(mags []float64) float64 {
	n := len(mags)
	if n < 4 {
		return 0
	}
	var r0 float64
	for _, m := range mags {
		r0 += m * m
	}
	if r0 < epsilon {
		return 0
	}
	var best float64
	for lag := 2; lag < n/2; lag++ {
		var corr float64
		for i := lag; i < n; i++ {
			corr += mags[i] * mags[i-lag]
		}
		if corr > best {
			best = corr
		}
	}
	return best / r0
}

// Krumhansl-Kessler key profiles, C-rooted.
var (
	majorProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
	pitchClasses = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
)

// estimateKey correlates the aggregated chroma with rotated Krumhansl
// profiles and returns the best root, mode and correlation strength.
func estimateKey(chroma []float64) (string, string, float64) {
	bestKey, bestScale := "", ""
	bestCorr := math.Inf(-1)

	for root := 0; root < 12; root++ {
		if c := profileCorrelation(chroma, majorProfile, root); c > bestCorr {
			bestCorr, bestKey, bestScale = c, pitchClasses[root], "major"
		}
		if c := profileCorrelation(chroma, minorProfile, root); c > bestCorr {
			bestCorr, bestKey, bestScale = c, pitchClasses[root], "minor"
		}
	}

	if math.IsInf(bestCorr, -1) || math.IsNaN(bestCorr) {
		return "", "", 0
	}
	return bestKey, bestScale, bestCorr
}

// profileCorrelation is the Pearson correlation between a chroma vector and
// a key profile rotated to the given root.
func profileCorrelation(chroma, profile []float64, root int) float64 {
	meanC := meanOf(chroma)
	meanP := meanOf(profile)

	var num, denC, denP float64
	for pc := 0; pc < 12; pc++ {
		c := chroma[pc] - meanC
		p := profile[((pc-root)%12+12)%12] - meanP
		num += c * p
		denC += c * c
		denP += p * p
	}
	den := math.Sqrt(denC * denP)
	if den < epsilon {
		return 0
	}
	return num / den
}
