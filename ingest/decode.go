package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/abema/go-mp4"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.senan.xyz/taglib"

	"github.com/museslab/euterpe/domain"
)

// decodePCM turns the input file into a mono float64 sample buffer. WAV is
// decoded natively; every other container is shelled through ffmpeg into a
// transient WAV first. The intermediate is registered on the asset for
// cleanup.
func (i *Ingestor) decodePCM(ctx context.Context, asset *domain.AudioAsset, path, ext string) ([]float64, int, error) {
	if ext == ".wav" {
		return decodeWAV(path)
	}

	intermediate := filepath.Join(i.uploadDir, uuid.NewString()+".wav")
	if err := transcodeToWAV(ctx, path, intermediate); err != nil {
		return nil, 0, err
	}
	asset.AddCleanup(func() { _ = os.Remove(intermediate) })

	return decodeWAV(intermediate)
}

func decodeWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav decode: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("wav decode: empty or malformed stream")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	scale := float64(int(1) << (uint(decoder.BitDepth) - 1))
	if scale <= 0 {
		scale = 1 << 15
	}

	// Downmix to mono by averaging interleaved channels.
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for fr := 0; fr < frames; fr++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[fr*channels+ch]) / scale
		}
		samples[fr] = sum / float64(channels)
	}

	return samples, buf.Format.SampleRate, nil
}

// transcodeToWAV decodes an arbitrary container to mono 16-bit PCM WAV at the
// source sample rate. ffmpeg cannot be cancelled mid-flight, so the wait is
// raced against the context instead.
func transcodeToWAV(ctx context.Context, inputPath, outputPath string) error {
	done := make(chan error, 1)
	go func() {
		done <- ffmpeggo.Input(inputPath).
			Output(outputPath, ffmpeggo.KwArgs{
				"acodec": "pcm_s16le",
				"ac":     1,
				"f":      "wav",
			}).
			OverWriteOutput().
			Silent(true).
			Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(outputPath)
			return fmt.Errorf("ffmpeg decode: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = os.Remove(outputPath)
		return fmt.Errorf("ffmpeg decode: %w", ctx.Err())
	}
}

// probeProperties reads duration and sample rate from the container itself:
// taglib first, an MP4 box walk for m4a, ffprobe last. Returns ok=false when
// nothing authoritative was found.
func probeProperties(path, ext string) (float64, int, bool) {
	if props, err := taglib.ReadProperties(path); err == nil {
		duration := props.Length.Seconds()
		rate := int(props.SampleRate)
		if duration > 0 && rate > 0 {
			return duration, rate, true
		}
	}

	if ext == ".m4a" {
		if duration, ok := probeMP4Duration(path); ok {
			if rate := probeFFSampleRate(path); rate > 0 {
				return duration, rate, true
			}
			return duration, 0, true
		}
	}

	if raw, err := ffmpeggo.Probe(path); err == nil {
		duration := gjson.Get(raw, "format.duration").Float()
		rate := int(gjson.Get(raw, `streams.#(codec_type=="audio").sample_rate`).Int())
		if duration > 0 || rate > 0 {
			return duration, rate, true
		}
	}

	return 0, 0, false
}

func probeMP4Duration(path string) (float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	info, err := mp4.Probe(f)
	if err != nil || info.Timescale == 0 {
		return 0, false
	}
	return float64(info.Duration) / float64(info.Timescale), true
}

func probeFFSampleRate(path string) int {
	raw, err := ffmpeggo.Probe(path)
	if err != nil {
		return 0
	}
	rate, _ := strconv.Atoi(gjson.Get(raw, `streams.#(codec_type=="audio").sample_rate`).String())
	return rate
}
