// Package vault holds short-lived transaction data in memory and expires it
// after a retention window.
//
// Two mechanisms remove stale entries: a periodic sweep over every entry and
// a per-key deadline queue served by the same goroutine. Both measure age from
// Entry.StoredAt, which Get refreshes, so they always agree on what is stale.
package vault

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultRetention          = time.Hour
	DefaultSensitiveSoftLimit = 50
	DefaultRegularSoftLimit   = 100
)

type Config struct {
	Retention          time.Duration
	SweepInterval      time.Duration
	SensitiveSoftLimit int
	RegularSoftLimit   int
	Now                func() time.Time
}

type Entry struct {
	Value       any
	StoredAt    time.Time
	AccessCount int

	gen uint64
}

type Stats struct {
	Count            int   `json:"sensitive_data_count"`
	RegularCount     int   `json:"regular_data_count"`
	OldestAgeMs      int64 `json:"oldest_sensitive_entry_age_ms"`
	TotalAccessCount int   `json:"total_sensitive_access_count"`
	SweepActive      bool  `json:"cleanup_job_active"`
}

type Store struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	sensitive map[string]*Entry
	regular   map[string]any
	nextGen   uint64

	deadlines *deadlineQueue
	wake      chan struct{}
	running   atomic.Bool
}

func New(cfg Config, logger *slog.Logger) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.Retention
	}
	if cfg.SensitiveSoftLimit <= 0 {
		cfg.SensitiveSoftLimit = DefaultSensitiveSoftLimit
	}
	if cfg.RegularSoftLimit <= 0 {
		cfg.RegularSoftLimit = DefaultRegularSoftLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:       cfg,
		logger:    logger,
		sensitive: make(map[string]*Entry),
		regular:   make(map[string]any),
		deadlines: newDeadlineQueue(),
		wake:      make(chan struct{}, 1),
	}
}

// Put stores value under key, replacing any previous entry, and schedules the
// key for expiry one retention window from now.
func (s *Store) Put(key string, value any) {
	now := s.cfg.Now()

	s.mu.Lock()
	s.nextGen++
	gen := s.nextGen
	s.sensitive[key] = &Entry{Value: value, StoredAt: now, gen: gen}
	s.deadlines.push(key, gen, now.Add(s.cfg.Retention))
	s.mu.Unlock()

	s.notify()
	s.logger.Debug("sensitive data stored", "key", key)
}

// Get returns the value and marks the entry as accessed, which also resets its
// age.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sensitive[key]
	if !ok {
		s.logger.Debug("sensitive data not found", "key", key)
		return nil, false
	}
	e.AccessCount++
	e.StoredAt = s.cfg.Now()
	return e.Value, true
}

// GetWithExpiryCheck behaves like Get but deletes and misses on entries that
// have reached the retention window.
func (s *Store) GetWithExpiryCheck(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sensitive[key]
	if !ok {
		return nil, false
	}
	now := s.cfg.Now()
	if s.isStale(e, now) {
		delete(s.sensitive, key)
		s.logger.Debug("removed expired sensitive data during access", "key", key)
		return nil, false
	}
	e.AccessCount++
	e.StoredAt = now
	return e.Value, true
}

// HasFresh reports whether key exists and is younger than the retention window.
func (s *Store) HasFresh(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sensitive[key]
	return ok && !s.isStale(e, s.cfg.Now())
}

// Entry returns a copy of the stored entry without touching its counters.
func (s *Store) Entry(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sensitive[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	_, ok := s.sensitive[key]
	delete(s.sensitive, key)
	s.mu.Unlock()
	if ok {
		s.logger.Debug("removed sensitive data", "key", key)
	}
	return ok
}

// Clear drops every sensitive entry together with its pending deadline.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.sensitive)
	s.sensitive = make(map[string]*Entry)
	s.deadlines.reset()
	s.mu.Unlock()
	s.logger.Debug("cleared sensitive data", "count", n)
}

func (s *Store) PutRegular(key string, value any) {
	s.mu.Lock()
	s.regular[key] = value
	s.mu.Unlock()
}

func (s *Store) GetRegular(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.regular[key]
	return v, ok
}

func (s *Store) RemoveRegular(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.regular[key]
	delete(s.regular, key)
	return ok
}

func (s *Store) ClearRegular() {
	s.mu.Lock()
	s.regular = make(map[string]any)
	s.mu.Unlock()
}

func (s *Store) ClearAll() {
	s.Clear()
	s.ClearRegular()
}

// Sweep removes every sensitive entry at or past the retention window and
// returns how many were removed. Expired keys are collected under the read
// lock and deleted one at a time so writers are never blocked for a full scan.
func (s *Store) Sweep() int {
	now := s.cfg.Now()

	s.mu.RLock()
	var expired []string
	for key, e := range s.sensitive {
		if s.isStale(e, now) {
			expired = append(expired, key)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, key := range expired {
		if s.deleteIfStale(key, now) {
			removed++
			s.logger.Debug("auto-cleanup removed expired sensitive data", "key", key)
		}
	}
	if removed > 0 {
		s.logger.Info("auto-cleanup completed", "removed", removed)
	}
	return removed
}

// ExpireDue serves every per-key deadline that has passed. Entries refreshed
// by Get since their deadline was set are rescheduled instead of removed.
func (s *Store) ExpireDue() int {
	now := s.cfg.Now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		d, ok := s.deadlines.popDue(now)
		if !ok {
			break
		}
		e, exists := s.sensitive[d.key]
		if !exists || e.gen != d.gen {
			continue
		}
		if s.isStale(e, now) {
			delete(s.sensitive, d.key)
			removed++
			continue
		}
		s.deadlines.push(d.key, d.gen, e.StoredAt.Add(s.cfg.Retention))
	}
	return removed
}

// Run drives the sweep ticker and the per-key deadline timer until ctx is
// done. Entries are left in place on shutdown; pending deadlines are dropped.
func (s *Store) Run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	s.logger.Info("vault sweeper started", "retention", s.cfg.Retention, "sweep_interval", s.cfg.SweepInterval)
	for {
		s.resetTimer(timer)
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.deadlines.reset()
			s.mu.Unlock()
			s.logger.Info("vault sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		case <-timer.C:
			s.ExpireDue()
		case <-s.wake:
		}
	}
}

func (s *Store) SweepActive() bool {
	return s.running.Load()
}

func (s *Store) Stats() Stats {
	now := s.cfg.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Count:        len(s.sensitive),
		RegularCount: len(s.regular),
		SweepActive:  s.running.Load(),
	}
	for _, e := range s.sensitive {
		if age := now.Sub(e.StoredAt).Milliseconds(); age > st.OldestAgeMs {
			st.OldestAgeMs = age
		}
		st.TotalAccessCount += e.AccessCount
	}
	return st
}

// Keys returns the sensitive keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.sensitive))
	for k := range s.sensitive {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Store) isStale(e *Entry, now time.Time) bool {
	return now.Sub(e.StoredAt) >= s.cfg.Retention
}

func (s *Store) deleteIfStale(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sensitive[key]
	if !ok || !s.isStale(e, now) {
		return false
	}
	delete(s.sensitive, key)
	return true
}

func (s *Store) resetTimer(timer *time.Timer) {
	s.mu.RLock()
	next, ok := s.deadlines.peek()
	s.mu.RUnlock()

	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if !ok {
		timer.Reset(s.cfg.SweepInterval)
		return
	}
	wait := next.Sub(s.cfg.Now())
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
}

func (s *Store) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
