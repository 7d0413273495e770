package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"payshield-service/internal/metrics"
	"payshield-service/internal/util"
)

var errNoCache = errors.New("cache not configured")

// CacheState is the process-wide cache availability flag shared by every repository.
// While degraded, repositories go straight to Postgres and skip cache writes.
type CacheState struct {
	cache     RecordCache
	opTimeout time.Duration
	degraded  atomic.Bool
	pending   sync.WaitGroup

	fillMu sync.Mutex
	fills  map[string]*keyFills
}

// keyFills tracks the background fills in flight for one cache key. gen moves
// on every write or eviction of the key; a fill whose generation is stale when
// it runs is dropped. mu is held across the fill's cache write and across the
// bump, so an eviction can never land between a fill's check and its Set.
type keyFills struct {
	mu   sync.Mutex
	gen  atomic.Uint64
	refs int
}

// fill is one pending background write of a relational read into the cache.
type fill struct {
	key string
	gen uint64
	kf  *keyFills
}

// NewCacheState wraps cache. A nil cache leaves the state permanently degraded.
func NewCacheState(cache RecordCache, opTimeout time.Duration) *CacheState {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	s := &CacheState{cache: cache, opTimeout: opTimeout, fills: make(map[string]*keyFills)}
	if cache == nil {
		s.degraded.Store(true)
		metrics.CacheDegraded.Set(1)
	}
	return s
}

// Acquire returns the cache only while it is considered healthy.
func (s *CacheState) Acquire() (RecordCache, bool) {
	if s.cache == nil || s.degraded.Load() {
		return nil, false
	}
	return s.cache, true
}

func (s *CacheState) Degraded() bool {
	return s.degraded.Load()
}

// Fail marks the cache degraded. Only the first caller after a healthy period logs.
func (s *CacheState) Fail(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		metrics.CacheDegraded.Set(1)
		util.Warn("cache marked degraded, reads fall back to postgres", util.ErrorField(err))
	}
}

// Recover clears the degraded flag.
func (s *CacheState) Recover() {
	if s.cache == nil {
		return
	}
	if s.degraded.CompareAndSwap(true, false) {
		metrics.CacheDegraded.Set(0)
		util.Info("cache recovered")
	}
}

// Probe pings the cache even while degraded and updates the flag from the result.
// A ping cut short by ctx itself leaves the flag alone.
func (s *CacheState) Probe(ctx context.Context) error {
	if s.cache == nil {
		return errNoCache
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.cache.Ping(opCtx); err != nil {
		if ctx == nil || ctx.Err() == nil {
			s.Fail(err)
		}
		return err
	}
	s.Recover()
	return nil
}

// Monitor probes the cache every interval until ctx is done.
func (s *CacheState) Monitor(ctx context.Context, interval time.Duration) {
	if s.cache == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Probe(ctx)
		}
	}
}

// Go runs fn in the background and tracks it for Wait.
func (s *CacheState) Go(fn func()) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
}

// Wait blocks until background cache writes started with Go have finished.
func (s *CacheState) Wait() {
	s.pending.Wait()
}

// evict deletes key from the cache and drops any fill of key still in flight.
// Failures degrade the cache.
func (s *CacheState) evict(ctx context.Context, key string) {
	s.invalidate(key)
	cache, ok := s.Acquire()
	if !ok {
		return
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := cache.Delete(opCtx, key); err != nil {
		s.fault(ctx, "delete", err)
	}
}

// fault records a failed cache call made on behalf of caller. Errors caused by
// the caller's own cancellation or deadline say nothing about the cache.
func (s *CacheState) fault(caller context.Context, op string, err error) {
	if caller != nil && caller.Err() != nil {
		return
	}
	metrics.CacheFaults.WithLabelValues(op).Inc()
	s.Fail(err)
}

// beginFill registers a background fill of key. It must be called before the
// relational read whose result the fill will write.
func (s *CacheState) beginFill(key string) *fill {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	kf, ok := s.fills[key]
	if !ok {
		kf = &keyFills{}
		s.fills[key] = kf
	}
	kf.refs++
	return &fill{key: key, gen: kf.gen.Load(), kf: kf}
}

// commitFill runs write unless key was written or evicted since f began, then
// releases f.
func (s *CacheState) commitFill(f *fill, write func()) {
	f.kf.mu.Lock()
	if f.kf.gen.Load() == f.gen {
		write()
	}
	f.kf.mu.Unlock()
	s.endFill(f)
}

func (s *CacheState) endFill(f *fill) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	f.kf.refs--
	if f.kf.refs == 0 && s.fills[f.key] == f.kf {
		delete(s.fills, f.key)
	}
}

// invalidate makes every fill of key in flight stale, waiting out one that is
// writing right now.
func (s *CacheState) invalidate(key string) {
	s.fillMu.Lock()
	kf := s.fills[key]
	s.fillMu.Unlock()
	if kf == nil {
		return
	}
	kf.mu.Lock()
	kf.gen.Add(1)
	kf.mu.Unlock()
}

func (s *CacheState) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
