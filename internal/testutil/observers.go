package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"payshield-service/internal/models"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// RecordingObserver collects every attempt it is handed. Err is returned after recording.
type RecordingObserver struct {
	ObserverName string
	Err          error

	mu       sync.Mutex
	attempts []*models.VerificationAttempt
}

func (o *RecordingObserver) Name() string {
	if o.ObserverName == "" {
		return "recording"
	}
	return o.ObserverName
}

func (o *RecordingObserver) ObserveAttempt(_ context.Context, attempt *models.VerificationAttempt) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	a := *attempt
	o.attempts = append(o.attempts, &a)
	return o.Err
}

func (o *RecordingObserver) Attempts() []*models.VerificationAttempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*models.VerificationAttempt(nil), o.attempts...)
}

// PrefixSealer "encrypts" by prefixing, which keeps sealed values readable in assertions.
type PrefixSealer struct {
	Prefix string
}

func (s PrefixSealer) Seal(_ context.Context, plaintext string) (string, error) {
	return s.Prefix + plaintext, nil
}

func (s PrefixSealer) Open(_ context.Context, sealed string) (string, error) {
	return strings.TrimPrefix(sealed, s.Prefix), nil
}
