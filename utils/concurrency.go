package utils

import (
	"sync"
	"time"
)

// WorkerPool bounds how many listing extractions or refresh jobs run at
// once, and optionally spaces job starts so the storefront is not hit in
// bursts.
type WorkerPool struct {
	slots     chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	minGap    time.Duration
	lastStart time.Time
}

// NewWorkerPool creates a pool running at most maxWorkers jobs at a time,
// with at least rateLimitMs milliseconds between job starts. A rate limit
// of zero disables the spacing.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	return &WorkerPool{
		slots:     make(chan struct{}, maxWorkers),
		minGap:    time.Duration(rateLimitMs) * time.Millisecond,
		lastStart: time.Now(),
	}
}

// Submit blocks until a slot frees, then runs job on its own goroutine.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.slots <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.slots }()

		wp.pace()
		job()
	}()
}

// Wait blocks until every submitted job has finished.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// pace holds the job back until minGap has elapsed since the last start.
func (wp *WorkerPool) pace() {
	if wp.minGap <= 0 {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wait := wp.minGap - time.Since(wp.lastStart); wait > 0 {
		time.Sleep(wait)
	}
	wp.lastStart = time.Now()
}

// URLSet deduplicates listing URLs across result pages. Safe for
// concurrent use by the per-page extraction goroutines.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add records url and reports whether it was new.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[url]; dup {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains reports whether url has been seen.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok
}

// Size returns the number of distinct URLs recorded.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
