// Package ratelimit throttles event ingest so a misbehaving extension
// cannot flood the analytics pipeline.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter combines a global server-wide limit with per-user limits.
type RateLimiter struct {
	globalLimiter   *rate.Limiter
	perUserLimiters *sync.Map // map[string]*rate.Limiter
	perUserRate     float64
	perUserBurst    int
}

// NewRateLimiter creates a rate limiter. globalRate is requests/second for
// the whole server; perUserRate is requests/second per authenticated user.
func NewRateLimiter(globalRate, perUserRate float64, perUserBurst int) *RateLimiter {
	return &RateLimiter{
		globalLimiter:   rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		perUserLimiters: &sync.Map{},
		perUserRate:     perUserRate,
		perUserBurst:    perUserBurst,
	}
}

// Allow reports whether one request from userID may proceed now. Both the
// global and the user's own limiter must have a token. Anonymous requests
// (empty userID) share one bucket keyed on the session ID.
func (rl *RateLimiter) Allow(userID string) bool {
	if !rl.globalLimiter.Allow() {
		return false
	}
	return rl.getOrCreateUserLimiter(userID).Allow()
}

func (rl *RateLimiter) getOrCreateUserLimiter(userID string) *rate.Limiter {
	if limiter, ok := rl.perUserLimiters.Load(userID); ok {
		return limiter.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(rate.Limit(rl.perUserRate), rl.perUserBurst)
	actual, _ := rl.perUserLimiters.LoadOrStore(userID, newLimiter)
	return actual.(*rate.Limiter)
}

// SetGlobalRate adjusts the server-wide limit at runtime.
func (rl *RateLimiter) SetGlobalRate(requestsPerSecond float64) {
	rl.globalLimiter.SetLimit(rate.Limit(requestsPerSecond))
	rl.globalLimiter.SetBurst(int(requestsPerSecond * 2))
}
