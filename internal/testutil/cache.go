package testutil

import (
	"context"
	"sync"
	"time"

	"payshield-service/internal/models"
)

// MockCache is an in-memory RecordCache. Entries never expire on their own;
// TTLs are recorded so tests can assert the policy. Like a network client it
// fails calls made with a done context.
type MockCache struct {
	GetErr    error
	SetErr    error
	DeleteErr error
	PingErr   error

	Entries map[string]map[string]string
	TTLs    map[string]time.Duration
	Calls   map[string]int

	mu sync.Mutex
}

func NewMockCache() *MockCache {
	return &MockCache{
		Entries: make(map[string]map[string]string),
		TTLs:    make(map[string]time.Duration),
		Calls:   make(map[string]int),
	}
}

func (c *MockCache) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// Entry returns a copy of the cached fields for key.
func (c *MockCache) Entry(key string) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.Entries[key]
	if !ok {
		return nil, false
	}
	return copyFields(e), true
}

// TTL returns the TTL recorded by the last Set of key.
func (c *MockCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TTLs[key]
}

// SetErrors swaps the injected errors under the lock, for tests that flip them mid-run.
func (c *MockCache) SetErrors(get, set, ping error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetErr, c.SetErr, c.PingErr = get, set, ping
}

// FailAll makes every call fail with err.
func (c *MockCache) FailAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetErr, c.SetErr, c.DeleteErr, c.PingErr = err, err, err, err
}

func (c *MockCache) Get(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Get"]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	e, ok := c.Entries[key]
	if !ok {
		return nil, models.ErrCacheMiss
	}
	return copyFields(e), nil
}

func (c *MockCache) Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Set"]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.SetErr != nil {
		return c.SetErr
	}
	c.Entries[key] = copyFields(fields)
	c.TTLs[key] = ttl
	return nil
}

func (c *MockCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Delete"]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	for _, k := range keys {
		delete(c.Entries, k)
		delete(c.TTLs, k)
	}
	return nil
}

func (c *MockCache) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["Ping"]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.PingErr
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GatedCache is a MockCache that holds every Set of one key until Release.
type GatedCache struct {
	*MockCache

	key         string
	waiting     chan struct{}
	release     chan struct{}
	waitOnce    sync.Once
	releaseOnce sync.Once
}

func NewGatedCache(key string) *GatedCache {
	return &GatedCache{
		MockCache: NewMockCache(),
		key:       key,
		waiting:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

// Waiting is closed once a Set of the gated key is being held.
func (c *GatedCache) Waiting() <-chan struct{} {
	return c.waiting
}

func (c *GatedCache) Release() {
	c.releaseOnce.Do(func() { close(c.release) })
}

func (c *GatedCache) Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if key == c.key {
		c.waitOnce.Do(func() { close(c.waiting) })
		<-c.release
		ctx = context.WithoutCancel(ctx)
	}
	return c.MockCache.Set(ctx, key, fields, ttl)
}
