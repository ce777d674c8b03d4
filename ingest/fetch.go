package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/museslab/euterpe/domain"
)

const driveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

type remoteFetcher struct {
	client    *http.Client
	uploadDir string
	maxBytes  int64
	// downloadURL is the fmt template resolving a file id to a fetch URL.
	downloadURL string
}

func NewRemoteFetcher(uploadDir string, maxSizeMB int64) domain.RemoteFetcher {
	return &remoteFetcher{
		client:      &http.Client{Timeout: 5 * time.Minute},
		uploadDir:   uploadDir,
		maxBytes:    maxSizeMB * 1024 * 1024,
		downloadURL: driveDownloadURL,
	}
}

// Fetch downloads a Drive-style share link (or bare file id) to a temp
// artifact under the upload dir and reports the resolved filename.
func (f *remoteFetcher) Fetch(ctx context.Context, rawURL string) (string, string, error) {
	fileID, ok := ExtractFileID(rawURL)
	if !ok {
		return "", "", domain.NewIngestionError(domain.IngestionFetch,
			fmt.Errorf("cannot extract a file id from %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(f.downloadURL, url.QueryEscape(fileID)), nil)
	if err != nil {
		return "", "", domain.NewIngestionError(domain.IngestionFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", domain.NewIngestionError(domain.IngestionFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", "", domain.NewIngestionError(domain.IngestionFetchNotFound,
			fmt.Errorf("remote file %s not found", fileID))
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return "", "", domain.NewIngestionError(domain.IngestionFetchDenied,
			fmt.Errorf("remote file %s is not accessible", fileID))
	case resp.StatusCode != http.StatusOK:
		return "", "", domain.NewIngestionError(domain.IngestionFetch,
			fmt.Errorf("remote fetch returned status %d", resp.StatusCode))
	}

	filename := resolveFilename(resp, fileID)

	if err := os.MkdirAll(f.uploadDir, 0o755); err != nil {
		return "", "", domain.NewIngestionError(domain.IngestionFetch, err)
	}
	dest := filepath.Join(f.uploadDir, uuid.NewString()+"_"+filename)
	out, err := os.Create(dest)
	if err != nil {
		return "", "", domain.NewIngestionError(domain.IngestionFetch, err)
	}
	defer out.Close()

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		_ = os.Remove(dest)
		return "", "", domain.NewIngestionError(domain.IngestionFetch, err)
	}
	if f.maxBytes > 0 && written > f.maxBytes {
		_ = os.Remove(dest)
		return "", "", domain.NewIngestionError(domain.IngestionSizeLimit,
			fmt.Errorf("remote file exceeds limit %d bytes", f.maxBytes))
	}

	return dest, filename, nil
}

// ExtractFileID handles /file/d/<id>/ and ?id=<id> share links plus bare ids.
func ExtractFileID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if idx := strings.Index(raw, "/file/d/"); idx >= 0 {
		rest := raw[idx+len("/file/d/"):]
		if end := strings.IndexAny(rest, "/?"); end >= 0 {
			rest = rest[:end]
		}
		if rest != "" {
			return rest, true
		}
		return "", false
	}

	if parsed, err := url.Parse(raw); err == nil {
		if id := parsed.Query().Get("id"); id != "" {
			return id, true
		}
	}

	// A bare id: no scheme, no separators, sane length.
	if !strings.ContainsAny(raw, "/?&= ") && len(raw) < 50 {
		return raw, true
	}

	return "", false
}

func resolveFilename(resp *http.Response, fileID string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." {
				return name
			}
		}
	}
	if base := path.Base(resp.Request.URL.Path); base != "" && base != "/" && base != "." && strings.Contains(base, ".") {
		return base
	}
	return fileID + ".mp3"
}
