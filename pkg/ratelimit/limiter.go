package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different upstream services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds (or replaces) the rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 2 means 2 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event or ctx is done
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Limiter names
const (
	LimiterFeeds     = "feeds"
	LimiterSheets    = "sheets"
	LimiterAnthropic = "anthropic"
)

// Rates configures NewDefaultLimiter. Zero values fall back to defaults.
type Rates struct {
	FeedsPerSecond     float64
	FeedBurst          int
	SheetsPerSecond    float64
	AnthropicPerMinute int
}

// NewDefaultLimiter creates a limiter for every upstream the scheduler talks to
func NewDefaultLimiter(r Rates) *MultiLimiter {
	m := NewMultiLimiter()

	// Feeds: be polite to publishers - 2 per second, burst 10
	feeds, burst := r.FeedsPerSecond, r.FeedBurst
	if feeds <= 0 {
		feeds = 2
	}
	if burst <= 0 {
		burst = 10
	}
	m.AddLimiter(LimiterFeeds, feeds, burst)

	// Sheets API: 60 read requests per minute per user
	sheets := r.SheetsPerSecond
	if sheets <= 0 {
		sheets = 1
	}
	m.AddLimiter(LimiterSheets, sheets, 5)

	// Anthropic: 10 requests per minute, burst 2
	perMinute := r.AnthropicPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	m.AddLimiter(LimiterAnthropic, float64(perMinute)/60, 2)

	return m
}
