// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/streamcap/internal/browser"
	"github.com/ManuGH/streamcap/internal/capture/model"
)

// FakeLauncher hands out FakePages. Launches block on Gate when it is set.
type FakeLauncher struct {
	Err  error
	Gate chan struct{}

	mu    sync.Mutex
	pages []*FakePage
}

// Launch implements browser.Launcher.
func (l *FakeLauncher) Launch(ctx context.Context, url string) (browser.Page, error) {
	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	p := NewFakePage(url)
	l.mu.Lock()
	l.pages = append(l.pages, p)
	l.mu.Unlock()
	return p, nil
}

// Pages returns the pages launched so far.
func (l *FakeLauncher) Pages() []*FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakePage(nil), l.pages...)
}

// Last returns the most recent page or nil.
func (l *FakeLauncher) Last() *FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pages) == 0 {
		return nil
	}
	return l.pages[len(l.pages)-1]
}

// FakePage is an in-memory browser page.
type FakePage struct {
	URL        string
	Image      []byte
	candidates chan model.Candidate

	mu       sync.Mutex
	closed   bool
	closedBy string
}

// NewFakePage returns an open page.
func NewFakePage(url string) *FakePage {
	return &FakePage{URL: url, Image: []byte("screenshot"), candidates: make(chan model.Candidate, 64)}
}

// Emit delivers a network candidate as if the page requested it.
func (p *FakePage) Emit(c model.Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.candidates <- c
	}
}

// UserClose simulates the user closing the browser window.
func (p *FakePage) UserClose() { p.shut("user") }

// Closed reports whether the page was closed and by whom ("user" or "client").
func (p *FakePage) Closed() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.closedBy
}

func (p *FakePage) shut(by string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.closedBy = by
	close(p.candidates)
}

// Candidates implements browser.Page.
func (p *FakePage) Candidates() <-chan model.Candidate { return p.candidates }

// Screenshot implements browser.Page.
func (p *FakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("page closed")
	}
	return p.Image, nil
}

// Close implements browser.Page.
func (p *FakePage) Close() error {
	p.shut("client")
	return nil
}
