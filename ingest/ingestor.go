package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/museslab/euterpe/domain"
)

// SupportedExtensions is the accepted container set, lowercase with dot.
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".aac":  true,
	".wma":  true,
}

type Ingestor struct {
	uploadDir string
	maxBytes  int64
}

func NewIngestor(uploadDir string, maxSizeMB int64) *Ingestor {
	return &Ingestor{
		uploadDir: uploadDir,
		maxBytes:  maxSizeMB * 1024 * 1024,
	}
}

// Ingest normalizes a saved input file into a decoded AudioAsset. Every
// failure here is fatal to the run. The returned asset owns the temp
// artifacts; callers must invoke Cleanup on every exit path.
func (i *Ingestor) Ingest(ctx context.Context, source domain.AnalysisSource) (*domain.AudioAsset, error) {
	ext := strings.ToLower(filepath.Ext(source.Filename))
	if !SupportedExtensions[ext] {
		return nil, domain.NewIngestionError(domain.IngestionUnsupportedFormat,
			fmt.Errorf("unsupported file type %q, allowed: %s", ext, strings.Join(sortedExtensions(), ", ")))
	}

	info, err := os.Stat(source.Path)
	if err != nil {
		return nil, domain.NewIngestionError(domain.IngestionDecode, fmt.Errorf("cannot stat input: %w", err))
	}
	if i.maxBytes > 0 && info.Size() > i.maxBytes {
		return nil, domain.NewIngestionError(domain.IngestionSizeLimit,
			fmt.Errorf("file size %d exceeds limit %d bytes", info.Size(), i.maxBytes))
	}

	if err := i.sniffContent(source.Path); err != nil {
		return nil, err
	}

	asset := &domain.AudioAsset{
		Filename: source.Filename,
		FileSize: info.Size(),
		Format:   strings.TrimPrefix(ext, "."),
		Source:   source.Kind,
		Path:     source.Path,
	}
	asset.AddCleanup(func() { _ = os.Remove(source.Path) })

	samples, sampleRate, err := i.decodePCM(ctx, asset, source.Path, ext)
	if err != nil {
		asset.Cleanup()
		return nil, domain.NewIngestionError(domain.IngestionDecode, err)
	}
	asset.Samples = samples
	asset.SampleRate = sampleRate
	asset.Duration = float64(len(samples)) / float64(sampleRate)

	// Probed properties win over buffer arithmetic when available: the
	// decode step may have resampled or trimmed priming samples.
	if duration, rate, ok := probeProperties(source.Path, ext); ok {
		if duration > 0 {
			asset.Duration = duration
		}
		if rate > 0 {
			asset.SampleRate = rate
		}
	}

	asset.Tags = readTags(source.Path)

	return asset, nil
}

// sniffContent rejects payloads whose magic bytes identify a non-audio type,
// whatever the file is named. Unknown headers pass through to the decoder,
// which is the real arbiter.
func (i *Ingestor) sniffContent(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return domain.NewIngestionError(domain.IngestionDecode, err)
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return domain.NewIngestionError(domain.IngestionDecode, err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return nil
	}
	if kind.MIME.Type == "audio" || kind == matchers.TypeM4a || kind == matchers.TypeMp4 {
		return nil
	}
	return domain.NewIngestionError(domain.IngestionUnsupportedFormat,
		fmt.Errorf("content identified as %s, not audio", kind.MIME.Value))
}

func sortedExtensions() []string {
	return []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac", ".wma"}
}
