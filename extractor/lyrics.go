package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/museslab/euterpe/domain"
)

// LyricsStage transcribes the source file with the Whisper API. It works on
// the original upload rather than the decoded PCM so the service sends the
// compressed artifact over the wire.
type LyricsStage struct {
	client *openai.Client
}

// NewLyricsStage returns a stage backed by the given API key. With an empty
// key the stage stays registered but fails with a configuration error, so
// requests asking for lyrics get a recorded failure instead of a silent gap.
func NewLyricsStage(apiKey string) *LyricsStage {
	if apiKey == "" {
		return &LyricsStage{}
	}
	return &LyricsStage{client: openai.NewClient(apiKey)}
}

func (s *LyricsStage) ID() domain.StageID { return domain.StageLyrics }

func (s *LyricsStage) Extract(ctx context.Context, asset *domain.AudioAsset, opts domain.StageOptions) (interface{}, error) {
	if s.client == nil {
		return nil, errors.New("transcription not configured: missing API key")
	}
	if asset == nil || asset.Path == "" {
		return nil, errors.New("no source file to transcribe")
	}

	started := time.Now()
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: asset.Path,
		Language: opts.LanguageHint,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	segments := make([]domain.LyricsSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		start, end := seg.Start, seg.End
		if end < start {
			end = start
		}
		segments = append(segments, domain.LyricsSegment{
			ID:    seg.ID,
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	return &domain.Lyrics{
		Text:           strings.TrimSpace(resp.Text),
		Language:       resp.Language,
		Segments:       segments,
		ModelUsed:      string(openai.Whisper1),
		ProcessingTime: time.Since(started).Seconds(),
	}, nil
}
