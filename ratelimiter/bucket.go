package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultBucketSize = 10
	DefaultRefillRate = time.Second
)

// ErrStopped is returned by Wait once the bucket has been stopped.
var ErrStopped = errors.New("rate limiter stopped")

// Bucket is a channel-backed token bucket pacing model provider requests.
type Bucket struct {
	size    int
	refill  time.Duration
	tokens  chan struct{}
	ticker  *time.Ticker
	stopCh  chan struct{}
	mu      sync.RWMutex
	stopped bool
}

// NewBucket allows perMinute requests per minute with a burst of the same size.
func NewBucket(perMinute int) *Bucket {
	if perMinute <= 0 {
		return NewTokenBucket(0, 0)
	}
	return NewTokenBucket(perMinute, time.Minute/time.Duration(perMinute))
}

// NewTokenBucket starts full and adds one token every refill interval.
func NewTokenBucket(size int, refill time.Duration) *Bucket {
	if size <= 0 {
		size = DefaultBucketSize
	}
	if refill <= 0 {
		refill = DefaultRefillRate
	}

	b := &Bucket{
		size:   size,
		refill: refill,
		tokens: make(chan struct{}, size),
		ticker: time.NewTicker(refill),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		b.tokens <- struct{}{}
	}

	go b.run()
	return b
}

func (b *Bucket) run() {
	for {
		select {
		case <-b.ticker.C:
			select {
			case b.tokens <- struct{}{}:
			default:
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bucket) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// TryTake takes a token without blocking.
func (b *Bucket) TryTake() bool {
	if b.isStopped() {
		return false
	}
	select {
	case <-b.tokens:
		return true
	default:
		return false
	}
}

// Wait blocks until a token is available, ctx is done or the bucket stops.
func (b *Bucket) Wait(ctx context.Context) error {
	if b.isStopped() {
		return ErrStopped
	}
	select {
	case <-b.tokens:
		return nil
	case <-b.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is idempotent.
func (b *Bucket) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	b.ticker.Stop()
	close(b.stopCh)
}

func (b *Bucket) Available() int { return len(b.tokens) }

func (b *Bucket) Size() int { return b.size }

func (b *Bucket) RefillRate() time.Duration { return b.refill }
