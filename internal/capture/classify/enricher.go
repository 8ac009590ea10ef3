// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ManuGH/streamcap/internal/cache"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/ffmpeg"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultCacheTTL     = 10 * time.Minute
	defaultRateLimit    = 5
	defaultRateBurst    = 10
	maxManifestSize     = 2 << 20
)

// Prober reads stream metadata from a progressive or DASH URL.
type Prober interface {
	Probe(ctx context.Context, streamURL string, headers map[string]string) (ffmpeg.ProbeInfo, error)
}

// EnricherOptions configures NewEnricher. Zero values select defaults.
type EnricherOptions struct {
	HTTPClient   *http.Client
	Prober       Prober
	Cache        cache.Cache
	CacheTTL     time.Duration
	FetchTimeout time.Duration
	RateLimit    rate.Limit
	RateBurst    int
	Logger       zerolog.Logger
}

// Enricher fills in resolution and framerate for classified descriptors.
type Enricher struct {
	client  *http.Client
	prober  Prober
	cache   cache.Cache
	ttl     time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewEnricher builds an Enricher. A nil cache disables result caching.
func NewEnricher(opts EnricherOptions) *Enricher {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   opts.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Enricher{
		client:  client,
		prober:  opts.Prober,
		cache:   c,
		ttl:     opts.CacheTTL,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		logger:  opts.Logger,
	}
}

// Enrich expands an HLS master playlist into its variants or probes a
// single stream. It never fails: on any error the input is returned as the
// only element, unchanged.
func (e *Enricher) Enrich(ctx context.Context, d model.StreamDescriptor) []model.StreamDescriptor {
	key := cacheKey(d.URL)
	if raw, ok := e.cache.Get(ctx, key); ok {
		var cached []model.StreamDescriptor
		if err := json.Unmarshal(raw, &cached); err == nil && len(cached) > 0 {
			metrics.RecordEnrichment("cache", "hit")
			return attach(cached, d)
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		out, err := e.enrich(ctx, d)
		if err != nil {
			return nil, err
		}
		if raw, mErr := json.Marshal(out); mErr == nil {
			e.cache.Set(ctx, key, raw, e.ttl)
		}
		return out, nil
	})
	if err != nil {
		e.logger.Debug().Err(err).Str("url", d.URL).Msg("enrichment failed, keeping descriptor")
		return []model.StreamDescriptor{d}
	}
	return attach(v.([]model.StreamDescriptor), d)
}

func (e *Enricher) enrich(ctx context.Context, d model.StreamDescriptor) ([]model.StreamDescriptor, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if d.Protocol == model.ProtocolHLS {
		out, err := e.expandHLS(ctx, d)
		metrics.RecordEnrichment("hls", resultLabel(err))
		return out, err
	}
	if e.prober == nil {
		return nil, errors.New("no prober configured")
	}
	info, err := e.prober.Probe(ctx, d.URL, d.Headers)
	metrics.RecordEnrichment("probe", resultLabel(err))
	if err != nil {
		return nil, err
	}
	d.Resolution = info.Resolution()
	d.Framerate = info.FPS
	d.Codecs = info.Codec
	return []model.StreamDescriptor{d}, nil
}

func (e *Enricher) expandHLS(ctx context.Context, d model.StreamDescriptor) ([]model.StreamDescriptor, error) {
	base, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	variants := ParseMasterPlaylist(string(body), base)
	if len(variants) == 0 {
		// media playlist
		return []model.StreamDescriptor{d}, nil
	}
	out := make([]model.StreamDescriptor, 0, len(variants))
	for _, v := range variants {
		out = append(out, model.StreamDescriptor{
			URL:          v.URL,
			Protocol:     model.ProtocolHLS,
			Name:         v.Name,
			Resolution:   v.Resolution,
			Framerate:    v.Framerate,
			Bandwidth:    v.Bandwidth,
			Codecs:       v.Codecs,
			DiscoveredAt: d.DiscoveredAt,
		})
	}
	return out, nil
}

// attach copies results and carries over per-request fields that are not
// part of the cached form.
func attach(results []model.StreamDescriptor, src model.StreamDescriptor) []model.StreamDescriptor {
	out := make([]model.StreamDescriptor, len(results))
	copy(out, results)
	for i := range out {
		out[i].Headers = src.Headers
		out[i].DiscoveredAt = src.DiscoveredAt
	}
	return out
}

func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return "enrich:" + hex.EncodeToString(sum[:])
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
