package checks

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// probeMemoryTTL is how long a liveness verdict for a URL is reused
	// before the target is probed again.
	probeMemoryTTL = 24 * time.Hour

	// probeCleanupInterval is how often expired verdicts are swept.
	probeCleanupInterval = time.Hour
)

// LinkStatus is the liveness verdict for one probed URL. Status is 0 when
// the request itself failed (DNS, refused, timeout).
type LinkStatus struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
}

type probeRecord struct {
	status  LinkStatus
	expires time.Time
}

// LinkProber samples page links for liveness. Probes are throttled by a
// shared rate limiter and verdicts are remembered per URL with a TTL, so
// repeated audits of the same site do not hammer the same targets.
type LinkProber struct {
	probe   Prober
	limiter *rate.Limiter
	limit   int

	memory   sync.Map // url → *probeRecord
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLinkProber builds a prober that samples at most limit links per audit
// at rps requests per second. Non-positive arguments fall back to safe
// defaults. Callers must Stop the prober when done with it.
func NewLinkProber(probe Prober, limit int, rps float64) *LinkProber {
	if limit <= 0 {
		limit = 20
	}
	if rps <= 0 {
		rps = 4
	}
	p := &LinkProber{
		probe:   probe,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		limit:   limit,
		stopCh:  make(chan struct{}),
	}
	go p.cleanupLoop()
	return p
}

// Limit reports the per-audit sample cap.
func (p *LinkProber) Limit() int {
	return p.limit
}

// ProbeAll checks the liveness of up to Limit() URLs, serving remembered
// verdicts where possible. Results are positionally aligned with the
// (possibly truncated) input. A cancelled context yields unprobed entries
// with Status 0 that are not remembered.
func (p *LinkProber) ProbeAll(ctx context.Context, urls []string) []LinkStatus {
	if len(urls) > p.limit {
		urls = urls[:p.limit]
	}

	results := make([]LinkStatus, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		if cached, ok := p.recall(u); ok {
			results[i] = cached
			continue
		}
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			if err := p.limiter.Wait(ctx); err != nil {
				results[i] = LinkStatus{URL: u}
				return
			}
			status, err := p.probe.Probe(ctx, u)
			ls := LinkStatus{URL: u, Status: status, OK: err == nil && status > 0 && status < 400}
			if err == nil || ctx.Err() == nil {
				p.remember(u, ls)
			}
			results[i] = ls
		}(i, u)
	}
	wg.Wait()
	return results
}

// Stop terminates the cleanup goroutine. Safe to call multiple times.
func (p *LinkProber) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *LinkProber) recall(u string) (LinkStatus, bool) {
	v, ok := p.memory.Load(u)
	if !ok {
		return LinkStatus{}, false
	}
	rec := v.(*probeRecord)
	if time.Now().After(rec.expires) {
		p.memory.Delete(u)
		return LinkStatus{}, false
	}
	return rec.status, true
}

func (p *LinkProber) remember(u string, ls LinkStatus) {
	p.memory.Store(u, &probeRecord{
		status:  ls,
		expires: time.Now().Add(probeMemoryTTL),
	})
}

func (p *LinkProber) cleanupLoop() {
	ticker := time.NewTicker(probeCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			p.memory.Range(func(key, value any) bool {
				if rec, ok := value.(*probeRecord); ok && now.After(rec.expires) {
					p.memory.Delete(key)
				}
				return true
			})
		}
	}
}
