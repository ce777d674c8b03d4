package ingest

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/museslab/euterpe/domain"
	"go.senan.xyz/taglib"
	"golang.org/x/text/unicode/norm"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// readTags pulls best-effort descriptive metadata from container tags.
// Absent tags stay nil; they are omitted from the persisted record rather
// than defaulted to empty strings.
func readTags(path string) domain.TagMetadata {
	meta := domain.TagMetadata{}

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if m, err := tag.ReadFrom(f); err == nil {
			meta.Title = cleanTag(m.Title())
			meta.Artist = cleanTag(m.Artist())
			meta.Album = cleanTag(m.Album())
			meta.Genre = cleanTag(m.Genre())
			if y := m.Year(); y > 0 {
				meta.Year = &y
			}
		}
	}

	if meta.Title != nil && meta.Artist != nil && meta.Year != nil {
		return meta
	}

	// taglib fallback covers formats dhowden/tag cannot read (wav, wma, aac).
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return meta
	}
	if meta.Title == nil {
		meta.Title = cleanTag(firstTag(tags, taglib.Title))
	}
	if meta.Artist == nil {
		meta.Artist = cleanTag(firstTag(tags, taglib.Artist))
	}
	if meta.Album == nil {
		meta.Album = cleanTag(firstTag(tags, taglib.Album))
	}
	if meta.Genre == nil {
		meta.Genre = cleanTag(firstTag(tags, taglib.Genre))
	}
	if meta.Year == nil {
		if y := parseYear(firstTag(tags, taglib.Date)); y != nil {
			meta.Year = y
		}
	}

	return meta
}

func firstTag(tags map[string][]string, key string) string {
	if values := tags[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// cleanTag trims and NFC-normalizes a tag value, returning nil for blanks so
// absence survives into the stored document.
func cleanTag(value string) *string {
	cleaned := norm.NFC.String(strings.TrimSpace(value))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// parseYear extracts the first 4-digit run from a free-form date tag.
func parseYear(value string) *int {
	match := yearPattern.FindString(value)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}
