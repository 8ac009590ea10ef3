// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package classify

import (
	"bufio"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Variant is one #EXT-X-STREAM-INF entry of an HLS master playlist.
type Variant struct {
	URL        string
	Name       string
	Bandwidth  int64
	Resolution string
	Framerate  float64
	Codecs     string
}

var endsWithFPS = regexp.MustCompile(`p\d+$`)

// ParseMasterPlaylist extracts the variants of an HLS master playlist,
// resolving relative URIs against base. Variants are ordered by bandwidth,
// highest first. A media playlist yields no variants.
func ParseMasterPlaylist(content string, base *url.URL) []Variant {
	var (
		variants []Variant
		pending  map[string]string
	)
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pending = parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
		case strings.HasPrefix(line, "#"):
			continue
		case pending != nil:
			variants = append(variants, buildVariant(pending, resolveRef(base, line)))
			pending = nil
		}
	}
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})
	return variants
}

func buildVariant(attrs map[string]string, uri string) Variant {
	v := Variant{
		URL:        uri,
		Resolution: attrs["RESOLUTION"],
		Codecs:     attrs["CODECS"],
	}
	if bw, err := strconv.ParseInt(attrs["BANDWIDTH"], 10, 64); err == nil {
		v.Bandwidth = bw
	}
	if fr, err := strconv.ParseFloat(attrs["FRAME-RATE"], 64); err == nil {
		v.Framerate = fr
	}

	name := firstNonEmpty(attrs["IVS-NAME"], attrs["STABLE-VARIANT-ID"], attrs["NAME"])
	fps := int(v.Framerate)
	switch {
	case name != "" && fps > 0 && !endsWithFPS.MatchString(name):
		name = fmt.Sprintf("%s%d", name, fps)
	case name == "":
		name = fallbackName(v.Resolution, fps, v.Bandwidth)
	}
	v.Name = name
	return v
}

func fallbackName(resolution string, fps int, bandwidth int64) string {
	h := 0
	if _, hs, ok := strings.Cut(resolution, "x"); ok {
		h, _ = strconv.Atoi(hs)
	}
	switch {
	case h > 0 && fps > 0:
		return fmt.Sprintf("%dp%d", h, fps)
	case h > 0:
		return fmt.Sprintf("%dp", h)
	default:
		return fmt.Sprintf("%dkbps", bandwidth/1000)
	}
}

// parseAttributes splits an HLS attribute list, honouring quoted values
// that contain commas (CODECS="avc1.4d401f,mp4a.40.2").
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var key, val strings.Builder
	inKey, inQuote := true, false
	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[strings.ToUpper(k)] = strings.TrimSpace(val.String())
		}
		key.Reset()
		val.Reset()
		inKey = true
	}
	for _, r := range s {
		switch {
		case inKey && r == '=':
			inKey = false
		case inKey:
			key.WriteRune(r)
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			flush()
		default:
			val.WriteRune(r)
		}
	}
	flush()
	return attrs
}

func resolveRef(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
