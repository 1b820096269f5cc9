package fetch

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// Tab health limits. A tab that keeps failing, has served many renders,
// or has simply been alive too long accumulates leaked DOM state and
// gets replaced with a fresh one.
const (
	retireErrScore = 3.0
	retireUseCount = 50
	retireAge      = 50 * time.Minute
)

// tabHandle wraps a browser tab with health tracking metadata.
type tabHandle struct {
	page     *rod.Page
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

func newTabHandle(page *rod.Page) *tabHandle {
	return &tabHandle{page: page, created: time.Now()}
}

// recordSuccess decreases the error score (min 0).
func (h *tabHandle) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// recordFailure increases the error score.
func (h *tabHandle) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

func (h *tabHandle) shouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errScore >= retireErrScore ||
		h.useCount >= retireUseCount ||
		time.Since(h.created) >= retireAge
}

// tabFactory creates a fresh browser tab.
type tabFactory func() (*rod.Page, error)

// tabPool is a fixed-capacity pool of reusable browser tabs. Tabs are
// created lazily up to the cap and replaced when their health degrades.
type tabPool struct {
	factory tabFactory

	idle    chan *tabHandle
	mu      sync.Mutex
	created int
	cap     int
	closed  bool
}

func newTabPool(capacity int, factory tabFactory) *tabPool {
	if capacity < 1 {
		capacity = 1
	}
	return &tabPool{
		factory: factory,
		idle:    make(chan *tabHandle, capacity),
		cap:     capacity,
	}
}

// get acquires a tab, creating one if the pool is under capacity,
// otherwise blocking until a tab is returned or the context expires.
func (p *tabPool) get(ctx context.Context) (*tabHandle, error) {
	select {
	case h := <-p.idle:
		return h, nil
	default:
	}

	p.mu.Lock()
	if p.created < p.cap {
		p.created++
		p.mu.Unlock()
		page, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}
		return newTabHandle(page), nil
	}
	p.mu.Unlock()

	select {
	case h := <-p.idle:
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// put returns a tab after a render. Unhealthy tabs are closed instead of
// being reused; the next get creates a replacement.
func (p *tabPool) put(h *tabHandle, success bool) {
	if success {
		h.recordSuccess()
	} else {
		h.recordFailure()
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || h.shouldRetire() {
		if !closed {
			slog.Debug("tab pool: retiring tab",
				"errScore", h.errScore, "useCount", h.useCount)
		}
		p.destroy(h)
		return
	}

	select {
	case p.idle <- h:
	default:
		// Pool full (shouldn't happen with matched get/put); drop the tab.
		p.destroy(h)
	}
}

func (p *tabPool) destroy(h *tabHandle) {
	p.mu.Lock()
	p.created--
	p.mu.Unlock()
	if err := h.page.Close(); err != nil {
		slog.Warn("tab pool: failed to close tab", "error", err)
	}
}

// close drains and closes all idle tabs. Tabs currently checked out are
// closed when returned.
func (p *tabPool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case h := <-p.idle:
			p.destroy(h)
		default:
			return
		}
	}
}
