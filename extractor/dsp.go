package extractor

import (
	"context"
	"math"
)

// Shared DSP kernel for the in-process extraction stages: Hann windowing,
// iterative radix-2 FFT, frame iteration, chroma folding and tempo
// estimation from an onset envelope.

const epsilon = 1e-10

func hannWindow(n int) []float64 {
	win := make([]float64, n)
	for i := range win {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return win
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes an in-place iterative radix-2 FFT. len(re) must be a power of
// two and len(im) == len(re).
func fft(re, im []float64) {
	n := len(re)
	if n < 2 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(angle), math.Sin(angle)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				evenRe, evenIm := re[start+k], im[start+k]
				oddRe := re[start+k+half]*curRe - im[start+k+half]*curIm
				oddIm := re[start+k+half]*curIm + im[start+k+half]*curRe
				re[start+k], im[start+k] = evenRe+oddRe, evenIm+oddIm
				re[start+k+half], im[start+k+half] = evenRe-oddRe, evenIm-oddIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// magnitudeSpectrum returns the one-sided magnitude spectrum of a windowed
// frame. The result has len(frame)/2+1 bins.
func magnitudeSpectrum(frame, window []float64) []float64 {
	n := len(frame)
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range frame {
		re[i] = frame[i] * window[i]
	}
	fft(re, im)

	mags := make([]float64, n/2+1)
	for i := range mags {
		mags[i] = math.Hypot(re[i], im[i])
	}
	return mags
}

// frameCount reports how many full frames fit the buffer.
func frameCount(samples int, frameSize, hop int) int {
	if samples < frameSize {
		return 0
	}
	return 1 + (samples-frameSize)/hop
}

// eachFrame invokes fn for every full analysis frame, polling ctx between
// blocks so slow extractions honor stage timeouts.
func eachFrame(ctx context.Context, samples []float64, frameSize, hop int, fn func(index int, frame []float64)) error {
	count := frameCount(len(samples), frameSize, hop)
	for i := 0; i < count; i++ {
		if i%64 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		start := i * hop
		fn(i, samples[start:start+frameSize])
	}
	return nil
}

// binFrequency maps FFT bin index to Hz.
func binFrequency(bin, fftSize, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(fftSize)
}

// chromaFromSpectrum folds a magnitude spectrum into 12 pitch classes
// (C = 0) weighted by bin magnitude.
func chromaFromSpectrum(mags []float64, fftSize, sampleRate int) []float64 {
	chroma := make([]float64, 12)
	for bin := 1; bin < len(mags); bin++ {
		freq := binFrequency(bin, fftSize, sampleRate)
		if freq < 27.5 || freq > 4200 {
			continue
		}
		midi := 69 + 12*math.Log2(freq/440.0)
		pc := ((int(math.Round(midi)) % 12) + 12) % 12
		chroma[pc] += mags[bin]
	}
	return chroma
}

// normalizeChroma scales a chroma vector so its maximum is 1.
func normalizeChroma(chroma []float64) []float64 {
	max := 0.0
	for _, v := range chroma {
		if v > max {
			max = v
		}
	}
	if max < epsilon {
		return chroma
	}
	out := make([]float64, len(chroma))
	for i, v := range chroma {
		out[i] = v / max
	}
	return out
}

// onsetEnvelope is the half-wave rectified spectral flux per frame, a
// standard novelty curve for onset and tempo analysis.
func onsetEnvelope(spectra [][]float64) []float64 {
	env := make([]float64, len(spectra))
	for i := 1; i < len(spectra); i++ {
		var flux float64
		prev, cur := spectra[i-1], spectra[i]
		for b := range cur {
			if d := cur[b] - prev[b]; d > 0 {
				flux += d
			}
		}
		env[i] = flux
	}
	return env
}

// estimateTempo finds the dominant inter-onset period in the envelope by
// autocorrelation, constrained to 40-200 BPM. Returns the tempo in BPM and
// the normalized strength of the winning lag (0 when no rhythm is found).
func estimateTempo(env []float64, sampleRate, hop int) (float64, float64) {
	if len(env) < 4 {
		return 0, 0
	}

	mean := meanOf(env)
	centered := make([]float64, len(env))
	for i, v := range env {
		centered[i] = v - mean
	}

	frameRate := float64(sampleRate) / float64(hop)
	minLag := int(frameRate * 60 / 200) // 200 BPM
	maxLag := int(frameRate * 60 / 40)  // 40 BPM
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(centered) {
		maxLag = len(centered) - 1
	}
	if maxLag <= minLag {
		return 0, 0
	}

	var r0 float64
	for _, v := range centered {
		r0 += v * v
	}
	if r0 < epsilon {
		return 0, 0
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := lag; i < len(centered); i++ {
			corr += centered[i] * centered[i-lag]
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	bpm := 60 * frameRate / float64(bestLag)
	return bpm, bestCorr / r0
}

// pickOnsets returns frame indices whose envelope value is a local maximum
// above mean + std.
func pickOnsets(env []float64) []int {
	if len(env) < 3 {
		return nil
	}
	threshold := meanOf(env) + stdOf(env)
	var peaks []int
	for i := 1; i < len(env)-1; i++ {
		if env[i] > threshold && env[i] >= env[i-1] && env[i] > env[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := meanOf(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
