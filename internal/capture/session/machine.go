// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session runs the state machine of a single capture session:
// launch the browser, watch its traffic for streams, select one and record
// it, then release the browser.
package session

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/streamcap/internal/browser"
	"github.com/ManuGH/streamcap/internal/capture/classify"
	"github.com/ManuGH/streamcap/internal/capture/lifecycle"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/download"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/ManuGH/streamcap/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMonitorTimeout = 90 * time.Second
	DefaultSettleWindow   = 3 * time.Second
	DefaultAutoCloseDelay = 15 * time.Second
	thumbnailTimeout      = 20 * time.Second
)

var tracer = telemetry.Tracer("github.com/ManuGH/streamcap/internal/capture/session")

// Enricher expands or probes a classified descriptor.
type Enricher interface {
	Enrich(ctx context.Context, d model.StreamDescriptor) []model.StreamDescriptor
}

// Downloader runs recording jobs.
type Downloader interface {
	Start(ctx context.Context, job model.Job) (*download.Handle, error)
	Stop(id string) error
}

// Thumbnailer grabs a preview frame from a stream.
type Thumbnailer interface {
	Grab(ctx context.Context, streamURL string, headers map[string]string) ([]byte, error)
}

// Deps are the collaborators of a Machine. Thumbnailer is optional.
type Deps struct {
	Launcher    browser.Launcher
	Classifier  *classify.Classifier
	Enricher    Enricher
	Downloader  Downloader
	Thumbnailer Thumbnailer
	Clock       clock.Clock
}

// Config holds the session timings.
type Config struct {
	MonitorTimeout time.Duration
	SettleWindow   time.Duration
	AutoCloseDelay time.Duration
	DownloadDir    string
}

func (c Config) withDefaults() Config {
	if c.MonitorTimeout <= 0 {
		c.MonitorTimeout = DefaultMonitorTimeout
	}
	if c.SettleWindow <= 0 {
		c.SettleWindow = DefaultSettleWindow
	}
	if c.AutoCloseDelay <= 0 {
		c.AutoCloseDelay = DefaultAutoCloseDelay
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "."
	}
	return c
}

// Transition is reported to the OnTransition callback after every state change.
type Transition struct {
	SessionID string
	From      model.State
	To        model.State
	Reason    model.ReasonCode
	Snapshot  *model.Snapshot
}

// Machine owns one session. All state changes happen on its run goroutine;
// the exported methods only post messages to it.
type Machine struct {
	id     string
	deps   Deps
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger
	notify func(Transition)

	events chan any
	done   chan struct{}
	snap   atomic.Pointer[model.Snapshot]
	handle atomic.Pointer[download.Handle]

	// owned by the run goroutine
	rec           *model.Record
	page          browser.Page
	candidates    <-chan model.Candidate
	launching     bool
	cancelLaunch  context.CancelFunc
	handleDone    <-chan struct{}
	monitorTimer  clock.Timer
	settleTimer   clock.Timer
	closeTimer    clock.Timer
	seen          map[string]struct{}
	adaptive      bool
	thumbStarted  bool
	launchedAt    time.Time
	firstDetected time.Time
	helpers       sync.WaitGroup
	helperCtx     context.Context
	stopHelpers   context.CancelFunc
}

// New creates a machine in the Launching state. Call Start to run it.
func New(id string, req model.LaunchRequest, deps Deps, cfg Config, onTransition func(Transition)) *Machine {
	clk := clock.OrReal(deps.Clock)
	m := &Machine{
		id:     id,
		deps:   deps,
		cfg:    cfg.withDefaults(),
		clock:  clk,
		logger: log.WithComponent("capture.session").With().Str(log.FieldSessionID, id).Logger(),
		notify: onTransition,
		events: make(chan any, 32),
		done:   make(chan struct{}),
		rec:    model.NewRecord(id, req, clk.Now()),
		seen:   make(map[string]struct{}),
	}
	m.snap.Store(m.rec.Snapshot())
	return m
}

// ID returns the session id.
func (m *Machine) ID() string { return m.id }

// Done is closed when the machine has stopped and released its resources.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Snapshot returns the latest published state. While downloading, the job
// part is refreshed from the supervisor.
func (m *Machine) Snapshot() *model.Snapshot {
	s := m.snap.Load()
	if s.State != model.StateDownloading {
		return s
	}
	h := m.handle.Load()
	if h == nil {
		return s
	}
	cp := *s
	job := h.Snapshot()
	cp.Download = &job
	return &cp
}

// Start launches the browser and runs the machine until it stops.
func (m *Machine) Start(ctx context.Context) {
	ctx = log.ContextWithSessionID(ctx, m.id)
	m.helperCtx, m.stopHelpers = context.WithCancel(context.WithoutCancel(ctx))
	go m.run(ctx)
}

type (
	launchResult struct {
		page browser.Page
		err  error
	}
	enriched struct {
		streams []model.StreamDescriptor
	}
	thumbnail struct {
		data []byte
	}
	selectCmd struct {
		url   string
		reply chan error
	}
	closeCmd struct {
		shutdown bool
		reply    chan error
	}
	keepOpenCmd struct {
		reply chan error
	}
)

// Select records the detected stream with the given URL.
func (m *Machine) Select(url string) error {
	return m.request(selectCmd{url: url, reply: make(chan error, 1)})
}

// Close cancels the session, stops any download and releases the browser.
// On a finished session it releases a browser kept open.
func (m *Machine) Close() error {
	return m.request(closeCmd{reply: make(chan error, 1)})
}

// Shutdown is Close with the shutdown reason.
func (m *Machine) Shutdown() error {
	return m.request(closeCmd{shutdown: true, reply: make(chan error, 1)})
}

// KeepOpen stops the automatic browser release after the session ends.
func (m *Machine) KeepOpen() error {
	return m.request(keepOpenCmd{reply: make(chan error, 1)})
}

func (m *Machine) request(cmd any) error {
	var reply chan error
	switch c := cmd.(type) {
	case selectCmd:
		reply = c.reply
	case closeCmd:
		reply = c.reply
	case keepOpenCmd:
		reply = c.reply
	}
	select {
	case m.events <- cmd:
	case <-m.done:
		return model.ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return model.ErrSessionClosed
	}
}

// post is used by helper goroutines; it gives up once the loop has exited.
func (m *Machine) post(ev any) {
	select {
	case m.events <- ev:
	case <-m.helperCtx.Done():
	}
}

func (m *Machine) run(ctx context.Context) {
	defer func() {
		m.stopHelpers()
		m.helpers.Wait()
		close(m.done)
	}()

	m.launchedAt = m.clock.Now()
	m.startLaunch(ctx)

	for !m.finished() {
		select {
		case ev := <-m.events:
			m.handle1(ev)
		case cand, ok := <-m.candidates:
			if !ok {
				m.onBrowserGone()
				continue
			}
			m.onCandidate(cand)
		case <-m.handleDone:
			m.onDownloadDone()
		case <-timerC(m.monitorTimer):
			m.monitorTimer = nil
			m.onMonitorTimeout()
		case <-timerC(m.settleTimer):
			m.settleTimer = nil
			m.onSettled()
		case <-timerC(m.closeTimer):
			m.closeTimer = nil
			m.logger.Debug().Msg("auto-closing browser")
			m.releasePage()
		}
	}
	m.logger.Debug().Str("state", string(m.rec.State)).Msg("session stopped")
}

func (m *Machine) finished() bool {
	return m.rec.State.IsTerminal() && m.page == nil && !m.launching && m.handleDone == nil
}

func (m *Machine) handle1(ev any) {
	switch e := ev.(type) {
	case launchResult:
		m.onLaunched(e)
	case enriched:
		m.onEnriched(e.streams)
	case thumbnail:
		m.rec.Thumbnail = e.data
		m.publish()
	case selectCmd:
		e.reply <- m.onSelect(e.url)
	case closeCmd:
		e.reply <- m.onClose(e.shutdown)
	case keepOpenCmd:
		e.reply <- m.onKeepOpen()
	}
}

func (m *Machine) startLaunch(ctx context.Context) {
	lctx, cancel := context.WithCancel(ctx)
	m.cancelLaunch = cancel
	m.launching = true
	req := m.rec.Request
	go func() {
		lctx, span := tracer.Start(lctx, "session.launch")
		span.SetAttributes(telemetry.SessionAttributes(m.id, req.URL, req.ScheduleID, req.AutoDownload)...)
		page, err := m.deps.Launcher.Launch(lctx, req.URL)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(telemetry.ErrorAttributes(string(model.RLaunchFailed))...)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.post(launchResult{page: page, err: err})
	}()
}

func (m *Machine) onLaunched(r launchResult) {
	m.launching = false
	m.cancelLaunch()
	if m.rec.State.IsTerminal() {
		// cancelled while launching
		if r.page != nil {
			_ = r.page.Close()
		}
		return
	}
	if r.err != nil {
		m.logger.Warn().Err(r.err).Str(log.FieldEvent, "session.launch_failed").Msg("browser launch failed")
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvLaunchFailed, Detail: r.err.Error()})
		return
	}
	m.page = r.page
	m.candidates = r.page.Candidates()
	m.dispatch(lifecycle.Event{Kind: lifecycle.EvLaunched})
}

func (m *Machine) onCandidate(c model.Candidate) {
	st := m.rec.State
	if st != model.StateMonitoring && st != model.StateAwaitingSelection {
		return
	}
	d, err := m.deps.Classifier.Classify(c)
	if err != nil {
		metrics.RecordCandidate("rejected")
		return
	}
	if _, dup := m.seen[d.URL]; dup {
		metrics.RecordCandidate("duplicate")
		return
	}
	if d.Protocol == model.ProtocolProgressive && m.adaptive && isSegment(d.URL) {
		metrics.RecordCandidate("segment")
		return
	}
	m.seen[d.URL] = struct{}{}
	if d.Protocol != model.ProtocolProgressive {
		m.adaptive = true
	}
	metrics.RecordCandidate("accepted")
	m.logger.Debug().Str(log.FieldURL, d.URL).Str(log.FieldProtocol, string(d.Protocol)).Msg("stream candidate")

	m.goHelper(func(ctx context.Context) {
		var out []model.StreamDescriptor
		if m.deps.Enricher != nil {
			out = m.deps.Enricher.Enrich(ctx, d)
		} else {
			out = []model.StreamDescriptor{d}
		}
		m.post(enriched{streams: out})
	})
	if !m.thumbStarted {
		m.thumbStarted = true
		m.startThumbnail(d)
	}
}

func (m *Machine) startThumbnail(d model.StreamDescriptor) {
	page := m.page
	m.goHelper(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
		defer cancel()
		var img []byte
		if m.deps.Thumbnailer != nil {
			if b, err := m.deps.Thumbnailer.Grab(ctx, d.URL, d.Headers); err == nil {
				img = b
			} else {
				m.logger.Debug().Err(err).Msg("thumbnail from stream failed, using screenshot")
			}
		}
		if img == nil && page != nil {
			if b, err := page.Screenshot(ctx); err == nil {
				img = b
			}
		}
		if len(img) > 0 {
			m.post(thumbnail{data: img})
		}
	})
}

func (m *Machine) goHelper(fn func(ctx context.Context)) {
	m.helpers.Add(1)
	go func() {
		defer m.helpers.Done()
		fn(m.helperCtx)
	}()
}

func (m *Machine) onEnriched(streams []model.StreamDescriptor) {
	st := m.rec.State
	if st != model.StateMonitoring && st != model.StateAwaitingSelection {
		return
	}
	added := 0
	for _, d := range streams {
		m.seen[d.URL] = struct{}{}
		if m.rec.AddStream(d) {
			added++
			m.logger.Info().
				Str(log.FieldStreamName, d.Name).
				Str(log.FieldResolution, d.Resolution).
				Float64(log.FieldFPS, d.Framerate).
				Msg("stream detected")
		}
	}
	if added == 0 {
		return
	}
	if m.firstDetected.IsZero() {
		m.firstDetected = m.clock.Now()
		metrics.DetectionLatency.Observe(m.firstDetected.Sub(m.launchedAt).Seconds())
		stopTimer(&m.monitorTimer)
	}

	if !m.rec.Request.AutoDownload {
		if st == model.StateMonitoring {
			m.dispatch(lifecycle.Event{Kind: lifecycle.EvStreamsDetected})
			return
		}
		m.publish()
		return
	}

	best, match := SelectBest(m.rec.Detected, m.rec.Request.Preference)
	if match == MatchExact {
		m.selectStream(best, match)
		return
	}
	if m.settleTimer == nil {
		wait := m.cfg.SettleWindow - m.clock.Now().Sub(m.firstDetected)
		m.settleTimer = m.clock.NewTimer(wait)
	}
	m.publish()
}

func (m *Machine) onSettled() {
	if m.rec.State != model.StateMonitoring || len(m.rec.Detected) == 0 {
		return
	}
	best, match := SelectBest(m.rec.Detected, m.rec.Request.Preference)
	m.selectStream(best, match)
}

func (m *Machine) onMonitorTimeout() {
	if m.rec.State != model.StateMonitoring || len(m.rec.Detected) > 0 {
		return
	}
	m.dispatch(lifecycle.Event{
		Kind:   lifecycle.EvDetectionTimeout,
		Detail: fmt.Sprintf("no stream detected within %s", m.cfg.MonitorTimeout),
	})
}

func (m *Machine) selectStream(d model.StreamDescriptor, match Match) {
	m.logger.Info().
		Str(log.FieldStreamName, d.Name).
		Str("match", match.String()).
		Msg("stream selected")
	m.dispatch(lifecycle.Event{Kind: lifecycle.EvStreamSelected, Selected: &d})
}

func (m *Machine) onSelect(url string) error {
	switch m.rec.State {
	case model.StateMonitoring, model.StateAwaitingSelection:
	case model.StateDownloading:
		return fmt.Errorf("%w: a stream is already selected", model.ErrInvalidSelection)
	default:
		if m.rec.State.IsTerminal() {
			return model.ErrSessionClosed
		}
		return fmt.Errorf("%w: no streams detected yet", model.ErrInvalidSelection)
	}
	d, ok := m.rec.FindStream(url)
	if !ok {
		return fmt.Errorf("%w: unknown stream %q", model.ErrInvalidSelection, url)
	}
	m.selectStream(d, MatchNone)
	return nil
}

func (m *Machine) onClose(shutdown bool) error {
	if m.rec.State.IsTerminal() {
		stopTimer(&m.closeTimer)
		m.releasePage()
		return nil
	}
	kind := lifecycle.EvCloseRequested
	if shutdown {
		kind = lifecycle.EvShutdown
	}
	m.dispatch(lifecycle.Event{Kind: kind})
	stopTimer(&m.closeTimer)
	m.releasePage()
	return nil
}

func (m *Machine) onKeepOpen() error {
	m.rec.KeptOpen = true
	stopTimer(&m.closeTimer)
	m.publish()
	return nil
}

func (m *Machine) onBrowserGone() {
	m.candidates = nil
	switch m.rec.State {
	case model.StateMonitoring, model.StateAwaitingSelection:
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvBrowserClosed, Detail: "browser closed before a stream was selected"})
	default:
		m.logger.Debug().Msg("browser closed")
	}
	stopTimer(&m.closeTimer)
	m.releasePage()
}

func (m *Machine) startDownload() {
	sel := m.rec.Selected
	req := m.rec.Request
	now := m.clock.Now()
	job := model.Job{
		ID:         m.id,
		SourceURL:  sel.URL,
		OutputPath: filepath.Join(m.cfg.DownloadDir, download.OutputName(sel.Label(), req.Filename, req.Format, now)),
		Headers:    sel.Headers,
		Stream:     *sel,
	}
	h, err := m.deps.Downloader.Start(m.helperCtx, job)
	if h != nil {
		snap := h.Snapshot()
		m.rec.Job = &snap
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("download failed to start")
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvDownloadFailed, Detail: err.Error()})
		return
	}
	m.handle.Store(h)
	m.handleDone = h.Done()
}

func (m *Machine) onDownloadDone() {
	h := m.handle.Load()
	m.handleDone = nil
	snap := h.Snapshot()

	if m.rec.State != model.StateDownloading {
		// the session was cancelled; keep the final job state for history
		m.rec.LastJob = &snap
		m.publish()
		return
	}
	m.rec.Job = &snap
	switch snap.State {
	case model.JobSucceeded:
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvDownloadSucceeded})
	case model.JobStopped:
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvDownloadStopped, Detail: "download stopped"})
	default:
		detail := snap.Diagnostic
		if detail == "" {
			detail = "conversion process failed"
		}
		m.dispatch(lifecycle.Event{Kind: lifecycle.EvDownloadFailed, Detail: detail})
	}
}

// dispatch applies ev and runs the entry actions of the new state.
func (m *Machine) dispatch(ev lifecycle.Event) {
	from := m.rec.State
	tr, err := lifecycle.Dispatch(m.rec, ev, m.clock.Now())
	if err != nil {
		m.logger.Error().Err(err).Str("event", ev.Kind.String()).Msg("illegal session transition")
	}
	if tr.To == from {
		return
	}

	m.logger.Info().
		Str(log.FieldEvent, "session.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(tr.To)).
		Str(log.FieldReason, string(m.rec.Reason)).
		Msg("session transition")
	metrics.RecordTransition(string(from), string(tr.To), string(tr.Reason))

	m.enter(from, tr.To)
	snap := m.publish()
	if m.notify != nil {
		m.notify(Transition{SessionID: m.id, From: from, To: tr.To, Reason: m.rec.Reason, Snapshot: snap})
	}
}

func (m *Machine) enter(from, to model.State) {
	switch to {
	case model.StateMonitoring:
		m.monitorTimer = m.clock.NewTimer(m.cfg.MonitorTimeout)
	case model.StateAwaitingSelection:
		stopTimer(&m.monitorTimer)
	case model.StateDownloading:
		stopTimer(&m.monitorTimer)
		stopTimer(&m.settleTimer)
		m.startDownload()
	}
	if !to.IsTerminal() {
		return
	}

	stopTimer(&m.monitorTimer)
	stopTimer(&m.settleTimer)
	if m.launching {
		m.cancelLaunch()
	}
	if from == model.StateDownloading && m.handleDone != nil {
		id := m.id
		stop := m.deps.Downloader.Stop
		m.goHelper(func(context.Context) {
			if err := stop(id); err != nil {
				m.logger.Warn().Err(err).Msg("stop download")
			}
		})
	}
	if m.page != nil && !m.rec.KeptOpen && m.closeTimer == nil {
		m.closeTimer = m.clock.NewTimer(m.cfg.AutoCloseDelay)
	}
}

func (m *Machine) releasePage() {
	if m.page == nil {
		return
	}
	if err := m.page.Close(); err != nil {
		m.logger.Debug().Err(err).Msg("close browser")
	}
	m.page = nil
	m.candidates = nil
}

func (m *Machine) publish() *model.Snapshot {
	s := m.rec.Snapshot()
	m.snap.Store(s)
	return s
}

func timerC(t clock.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func isSegment(rawURL string) bool {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".ts", ".m4s":
		return true
	}
	return false
}
