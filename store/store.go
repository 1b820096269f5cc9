package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

// entry holds a stored report with its storage timestamp.
type entry struct {
	report   *models.AuditReport
	storedAt time.Time
}

// Store is the in-memory report store. It keeps finished reports
// retrievable by ID for ReportTTL and maintains a request-key index so
// an identical audit request arriving within CacheTTL can be served
// without re-running. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	reports map[string]*entry
	byKey   map[string]string // request key -> report ID
	cfg     config.StoreConfig

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Store with the given limits. Zero or negative values
// fall back to the defaults (500 entries, 24h report TTL, 10m cache
// TTL). A background goroutine evicts expired entries every 5 minutes
// until Stop is called.
func New(cfg config.StoreConfig) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	s := &Store{
		reports: make(map[string]*entry),
		byKey:   make(map[string]string),
		cfg:     cfg,
		stop:    make(chan struct{}),
	}

	go s.cleanupLoop()
	return s
}

// Key generates a request key from the normalized URL, the enabled
// categories, and the target keywords. Category and keyword order does
// not change the key.
func Key(normalizedURL string, categories []models.Category, keywords []string) string {
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}
	sort.Strings(cats)

	kws := make([]string, len(keywords))
	for i, k := range keywords {
		kws[i] = strings.ToLower(strings.TrimSpace(k))
	}
	sort.Strings(kws)

	h := sha256.New()
	h.Write([]byte(normalizedURL))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(cats, ",")))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(kws, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores the report under its ID. When key is non-empty the report
// also becomes the latest result for that request key. If the store is
// at capacity the oldest entry is evicted to make room.
func (s *Store) Put(report *models.AuditReport, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; !exists && len(s.reports) >= s.cfg.MaxEntries {
		s.evictOldestLocked()
	}

	s.reports[report.ID] = &entry{
		report:   report,
		storedAt: time.Now(),
	}
	if key != "" {
		s.byKey[key] = report.ID
	}
}

// Get retrieves a stored report by ID. Reports older than ReportTTL
// are treated as gone.
func (s *Store) Get(id string) (*models.AuditReport, bool) {
	s.mu.RLock()
	e, ok := s.reports[id]
	s.mu.RUnlock()

	if !ok || time.Since(e.storedAt) > s.cfg.ReportTTL {
		return nil, false
	}
	return e.report, true
}

// Lookup retrieves the latest report stored under the given request
// key, provided it is younger than CacheTTL. Returns the report and
// whether it was a hit.
func (s *Store) Lookup(key string) (*models.AuditReport, bool) {
	s.mu.RLock()
	id, ok := s.byKey[key]
	var e *entry
	if ok {
		e, ok = s.reports[id]
	}
	s.mu.RUnlock()

	if !ok || time.Since(e.storedAt) > s.cfg.CacheTTL {
		return nil, false
	}
	return e.report, true
}

// Recent returns compact summaries of the most recently stored reports,
// newest first, up to limit. Expired reports are skipped.
func (s *Store) Recent(limit int) []models.ReportSummary {
	s.mu.RLock()
	live := make([]*entry, 0, len(s.reports))
	for _, e := range s.reports {
		if time.Since(e.storedAt) <= s.cfg.ReportTTL {
			live = append(live, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool {
		return live[i].storedAt.After(live[j].storedAt)
	})
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}

	out := make([]models.ReportSummary, len(live))
	for i, e := range live {
		r := e.report
		out[i] = models.ReportSummary{
			ID:           r.ID,
			URL:          r.URL,
			GeneratedAt:  r.GeneratedAt,
			OverallScore: r.OverallScore,
			Errors:       r.Summary.Errors,
			Warnings:     r.Summary.Warnings,
		}
	}
	return out
}

// Len returns the number of stored reports, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Stop ends the background cleanup goroutine. Safe to call more than
// once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// evictOldestLocked removes the entry with the oldest storedAt.
// Caller must hold the write lock.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range s.reports {
		if oldestID == "" || e.storedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.storedAt
		}
	}
	if oldestID != "" {
		s.removeLocked(oldestID)
	}
}

// removeLocked deletes a report and any request keys pointing at it.
// Caller must hold the write lock.
func (s *Store) removeLocked(id string) {
	delete(s.reports, id)
	for k, v := range s.byKey {
		if v == id {
			delete(s.byKey, k)
		}
	}
}

// cleanupLoop evicts reports older than ReportTTL every 5 minutes.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, e := range s.reports {
				if time.Since(e.storedAt) > s.cfg.ReportTTL {
					s.removeLocked(id)
				}
			}
			s.mu.Unlock()
		}
	}
}
