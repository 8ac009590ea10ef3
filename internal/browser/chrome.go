// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/ManuGH/streamcap/internal/procgroup"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultNavTimeout = 30 * time.Second
	defaultKillGrace  = 5 * time.Second
	candidateBuffer   = 256
	maxTrackedReqs    = 4096
	activePortFile    = "DevToolsActivePort"
)

// forwarded request headers; the download needs them to pass CDN checks
var forwardHeaders = map[string]string{
	"cookie":        "Cookie",
	"referer":       "Referer",
	"origin":        "Origin",
	"user-agent":    "User-Agent",
	"authorization": "Authorization",
}

// ChromeOptions configures a Chrome launcher.
type ChromeOptions struct {
	Binary     string
	Profile    *Profile
	DebugPort  int
	Headless   bool
	NavTimeout time.Duration
	KillGrace  time.Duration
	ExtraArgs  []string
	Clock      clock.Clock
}

// Chrome launches Chrome/Chromium and watches its network traffic through
// the DevTools protocol.
type Chrome struct {
	opts   ChromeOptions
	client *http.Client
	logger zerolog.Logger
}

// NewChrome returns a Chrome launcher.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Binary == "" {
		opts.Binary = "chromium"
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = defaultNavTimeout
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	opts.Clock = clock.OrReal(opts.Clock)
	return &Chrome{
		opts:   opts,
		client: &http.Client{Timeout: 2 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger: log.WithComponent("browser"),
	}
}

// Launch starts a browser and navigates it to url. The shared profile is
// used when free so logins persist; otherwise the browser gets a throwaway
// profile that is removed on Close.
func (c *Chrome) Launch(ctx context.Context, url string) (Page, error) {
	prof, cleanupProfile, err := c.profile()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.NavTimeout)
	defer cancel()

	p := &chromePage{
		launcher:   c,
		candidates: make(chan model.Candidate, candidateBuffer),
		requests:   make(map[string]map[string]string),
		release:    cleanupProfile,
		watchDone:  make(chan struct{}),
		logger:     c.logger.With().Str(log.FieldURL, url).Logger(),
	}
	if err := p.start(ctx, prof, url); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (c *Chrome) profile() (string, func(), error) {
	if c.opts.Profile != nil {
		err := c.opts.Profile.Acquire()
		if err == nil {
			prof := c.opts.Profile
			return prof.Dir(), func() { _ = prof.Release() }, nil
		}
		if !errors.Is(err, ErrProfileBusy) {
			return "", nil, err
		}
		c.logger.Debug().Msg("shared profile busy, using a temporary one")
	}
	dir, err := os.MkdirTemp("", "streamcap-profile-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp profile: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (c *Chrome) args(profileDir string) []string {
	port := "0"
	if c.opts.DebugPort > 0 {
		port = strconv.Itoa(c.opts.DebugPort)
	}
	args := []string{
		"--remote-debugging-port=" + port,
		"--user-data-dir=" + profileDir,
		"--remote-allow-origins=*",
		"--no-first-run",
		"--no-default-browser-check",
		"--autoplay-policy=no-user-gesture-required",
	}
	if c.opts.Headless {
		args = append(args, "--headless=new")
	}
	args = append(args, c.opts.ExtraArgs...)
	return append(args, "about:blank")
}

type chromePage struct {
	launcher *Chrome
	logger   zerolog.Logger

	cmd    *exec.Cmd
	waitCh chan error
	exited chan struct{}
	conn   *cdpConn

	candidates chan model.Candidate
	watchDone  chan struct{}
	watching   bool

	reqMu    sync.Mutex
	requests map[string]map[string]string

	release   func()
	closeOnce sync.Once
}

func (p *chromePage) start(ctx context.Context, profileDir, url string) error {
	c := p.launcher
	_ = os.Remove(filepath.Join(profileDir, activePortFile))

	// #nosec G204 - binary comes from config
	cmd := exec.Command(c.opts.Binary, c.args(profileDir)...)
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	p.cmd = cmd
	p.waitCh = make(chan error, 1)
	p.exited = make(chan struct{})
	go func() {
		p.waitCh <- cmd.Wait()
		close(p.exited)
	}()
	p.logger.Info().Int(log.FieldPID, cmd.Process.Pid).Msg("browser started")

	wsURL, err := p.pageTarget(ctx, profileDir)
	if err != nil {
		return err
	}
	conn, err := dialCDP(ctx, wsURL, p.handleEvent)
	if err != nil {
		return err
	}
	p.conn = conn
	p.watching = true
	go p.watch()

	for _, method := range []string{"Network.enable", "Page.enable"} {
		if _, err := conn.Call(ctx, method, struct{}{}); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
	}
	raw, err := conn.Call(ctx, "Page.navigate", map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(raw, &nav); err == nil && nav.ErrorText != "" {
		return fmt.Errorf("navigate: %s", nav.ErrorText)
	}
	return nil
}

// pageTarget waits for the DevTools endpoint and returns the websocket URL
// of the first page target.
func (p *chromePage) pageTarget(ctx context.Context, profileDir string) (string, error) {
	c := p.launcher
	for {
		port := c.opts.DebugPort
		if port == 0 {
			port = readActivePort(filepath.Join(profileDir, activePortFile))
		}
		if port > 0 {
			if ws, err := c.listPageTarget(ctx, port); err == nil && ws != "" {
				return ws, nil
			}
		}

		t := c.opts.Clock.NewTimer(100 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", fmt.Errorf("devtools endpoint not ready: %w", ctx.Err())
		case <-p.exited:
			t.Stop()
			return "", errors.New("browser exited during startup")
		case <-t.C():
		}
	}
}

func (c *Chrome) listPageTarget(ctx context.Context, port int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json/list", port), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var targets []struct {
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", err
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", nil
}

func readActivePort(path string) int {
	f, err := os.Open(path) // #nosec G304 -- file inside our profile dir
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0
	}
	port, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return 0
	}
	return port
}

func (p *chromePage) watch() {
	defer close(p.watchDone)
	<-p.conn.Done()
	close(p.candidates)
}

func (p *chromePage) Candidates() <-chan model.Candidate { return p.candidates }

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.conn == nil {
		return nil, errConnClosed
	}
	raw, err := p.conn.Call(ctx, "Page.captureScreenshot", map[string]any{"format": "jpeg", "quality": 70})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	var res struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return base64.StdEncoding.DecodeString(res.Data)
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		if p.conn != nil {
			_ = p.conn.Close()
		}
		if p.watching {
			<-p.watchDone
		} else {
			close(p.candidates)
		}
		if p.cmd != nil {
			if err := procgroup.Terminate(p.cmd, p.waitCh, p.launcher.opts.KillGrace); err != nil {
				p.logger.Debug().Err(err).Msg("browser exit")
			}
		}
		if p.release != nil {
			p.release()
		}
		p.logger.Info().Msg("browser closed")
	})
	return nil
}

type requestWillBeSent struct {
	RequestID string `json:"requestId"`
	Request   struct {
		URL     string         `json:"url"`
		Headers map[string]any `json:"headers"`
	} `json:"request"`
}

type requestExtraInfo struct {
	RequestID string         `json:"requestId"`
	Headers   map[string]any `json:"headers"`
}

type responseReceived struct {
	RequestID string `json:"requestId"`
	Response  struct {
		URL      string `json:"url"`
		MimeType string `json:"mimeType"`
	} `json:"response"`
}

type requestRef struct {
	RequestID string `json:"requestId"`
}

// handleEvent runs on the connection's read goroutine.
func (p *chromePage) handleEvent(method string, params json.RawMessage) {
	switch method {
	case "Network.requestWillBeSent":
		var ev requestWillBeSent
		if json.Unmarshal(params, &ev) == nil {
			p.trackHeaders(ev.RequestID, ev.Request.Headers)
		}
	case "Network.requestWillBeSentExtraInfo":
		var ev requestExtraInfo
		if json.Unmarshal(params, &ev) == nil {
			p.trackHeaders(ev.RequestID, ev.Headers)
		}
	case "Network.responseReceived":
		var ev responseReceived
		if json.Unmarshal(params, &ev) != nil || ev.Response.URL == "" {
			return
		}
		p.emit(model.Candidate{
			URL:       ev.Response.URL,
			MimeType:  ev.Response.MimeType,
			Headers:   p.takeHeaders(ev.RequestID),
			Timestamp: p.launcher.opts.Clock.Now(),
		})
	case "Network.loadingFailed", "Network.loadingFinished":
		var ev requestRef
		if json.Unmarshal(params, &ev) == nil {
			p.takeHeaders(ev.RequestID)
		}
	}
}

func (p *chromePage) trackHeaders(id string, raw map[string]any) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	if len(p.requests) >= maxTrackedReqs {
		p.requests = make(map[string]map[string]string)
	}
	h := p.requests[id]
	if h == nil {
		h = make(map[string]string)
		p.requests[id] = h
	}
	for k, v := range raw {
		canon, ok := forwardHeaders[strings.ToLower(k)]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			h[canon] = s
		}
	}
}

func (p *chromePage) takeHeaders(id string) map[string]string {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	h := p.requests[id]
	delete(p.requests, id)
	if len(h) == 0 {
		return nil
	}
	return h
}

func (p *chromePage) emit(c model.Candidate) {
	select {
	case p.candidates <- c:
	default:
		metrics.RecordCandidate("dropped")
	}
}
