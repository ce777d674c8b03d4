package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museslab/euterpe/domain"
)

func TestExtractFileID(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"share link", "https://drive.google.com/file/d/1AbCdEf/view?usp=sharing", "1AbCdEf", true},
		{"share link no suffix", "https://drive.google.com/file/d/1AbCdEf", "1AbCdEf", true},
		{"id query param", "https://drive.google.com/open?id=1AbCdEf", "1AbCdEf", true},
		{"bare id", "1AbCdEf", "1AbCdEf", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"unrelated url", "https://example.com/some/path", "", false},
		{"overlong bare token", strings.Repeat("a", 60), "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractFileID(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func testFetcher(t *testing.T, server *httptest.Server, maxBytes int64) *remoteFetcher {
	t.Helper()
	return &remoteFetcher{
		client:      server.Client(),
		uploadDir:   t.TempDir(),
		maxBytes:    maxBytes,
		downloadURL: server.URL + "/download?id=%s",
	}
}

func TestFetchDownloadsFile(t *testing.T) {
	payload := []byte("fake mp3 payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("id"))
		w.Header().Set("Content-Disposition", `attachment; filename="song.mp3"`)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher := testFetcher(t, server, 1<<20)
	path, filename, err := fetcher.Fetch(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "song.mp3", filename)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   domain.IngestionKind
	}{
		{http.StatusNotFound, domain.IngestionFetchNotFound},
		{http.StatusForbidden, domain.IngestionFetchDenied},
		{http.StatusUnauthorized, domain.IngestionFetchDenied},
		{http.StatusInternalServerError, domain.IngestionFetch},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		fetcher := testFetcher(t, server, 1<<20)
		_, _, err := fetcher.Fetch(context.Background(), "abc123")
		require.Error(t, err)

		kind, ok := domain.IsIngestionError(err)
		require.True(t, ok)
		assert.Equal(t, tc.kind, kind, "status %d", tc.status)

		server.Close()
	}
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 256))
	}))
	defer server.Close()

	fetcher := testFetcher(t, server, 64)
	_, _, err := fetcher.Fetch(context.Background(), "abc123")
	require.Error(t, err)

	kind, ok := domain.IsIngestionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.IngestionSizeLimit, kind)

	// The partial artifact must not be left behind.
	entries, err := os.ReadDir(fetcher.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchRejectsUnparsableInput(t *testing.T) {
	fetcher := &remoteFetcher{downloadURL: driveDownloadURL}
	_, _, err := fetcher.Fetch(context.Background(), "https://example.com/no/id/here")
	require.Error(t, err)

	kind, ok := domain.IsIngestionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.IngestionFetch, kind)
}

func TestFetchDefaultFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	fetcher := testFetcher(t, server, 1<<20)
	_, filename, err := fetcher.Fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123.mp3", filename)
}
