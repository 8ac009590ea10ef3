// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 60

// OutputName returns the file name for a download. A user supplied name is
// slugged and keeps its extension, or gets "."+format appended when it has
// none. Without one the name is video_<stream>_<unix>.<format>.
func OutputName(streamName, filename, format string, now time.Time) string {
	if format == "" {
		format = "mp4"
	}
	if filename = strings.TrimSpace(filename); filename != "" {
		base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
		ext := path.Ext(base)
		stem := slugify(strings.TrimSuffix(base, ext), "video")
		if ext == "" {
			return stem + "." + format
		}
		return stem + strings.ToLower(ext)
	}
	return fmt.Sprintf("video_%s_%d.%s", slugify(streamName, "stream"), now.Unix(), format)
}

// slugify folds s to lowercase ASCII: diacritics are stripped and every run
// of other characters becomes a single '-'.
func slugify(s, fallback string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("ß", "ss", "æ", "ae", "ø", "o").Replace(strings.ToLower(folded))

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return fallback
	}
	return slug
}
