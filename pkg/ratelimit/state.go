// Package ratelimit implements fixed-window rate limiting of page commands.
// Windows are shared across edge instances through Redis so every instance
// counts against the same budget per client.
package ratelimit

import (
	"math"
	"time"
)

// RedisKeyPrefix prefixes the per-client window counters.
const RedisKeyPrefix = "edge:ratelimit:"

// Defaults mirror the general API limiter of the site.
const (
	DefaultWindow  = time.Minute
	DefaultMax     = 60
	DefaultMessage = "Too many requests. Please try again in a minute."
)

// WindowState is one client's position in the current window.
type WindowState struct {
	// Count is the number of requests in the window, this one included.
	Count int64 `json:"count"`

	// Limit is the maximum number of requests per window.
	Limit int64 `json:"limit"`

	// ResetAt is when the window ends.
	ResetAt time.Time `json:"reset_at"`
}

// Exceeded reports whether the request that produced this state is over
// the limit.
func (s *WindowState) Exceeded() bool {
	return s.Count > s.Limit
}

// Remaining returns the requests left in the window, never below zero.
func (s *WindowState) Remaining() int64 {
	if s.Count >= s.Limit {
		return 0
	}
	return s.Limit - s.Count
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *WindowState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// RetryAfterSeconds rounds TimeUntilReset up to whole seconds.
func (s *WindowState) RetryAfterSeconds() int {
	return int(math.Ceil(s.TimeUntilReset().Seconds()))
}
