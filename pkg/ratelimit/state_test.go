package ratelimit

import (
	"testing"
	"time"
)

func TestWindowState_Exceeded(t *testing.T) {
	tests := []struct {
		name          string
		count         int64
		expected      bool
		wantRemaining int64
	}{
		{
			name:          "first request",
			count:         1,
			expected:      false,
			wantRemaining: 9,
		},
		{
			name:          "at limit",
			count:         10,
			expected:      false,
			wantRemaining: 0,
		},
		{
			name:          "just over limit",
			count:         11,
			expected:      true,
			wantRemaining: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &WindowState{Count: tt.count, Limit: 10}
			if got := state.Exceeded(); got != tt.expected {
				t.Errorf("Exceeded() = %v, want %v", got, tt.expected)
			}
			if got := state.Remaining(); got != tt.wantRemaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.wantRemaining)
			}
		})
	}
}

func TestWindowState_TimeUntilReset(t *testing.T) {
	tests := []struct {
		name      string
		resetAt   time.Time
		wantRetry int
	}{
		{
			name:      "reset in the past",
			resetAt:   time.Now().Add(-time.Second),
			wantRetry: 0,
		},
		{
			name:      "partial second rounds up",
			resetAt:   time.Now().Add(1500 * time.Millisecond),
			wantRetry: 2,
		},
		{
			name:      "full window",
			resetAt:   time.Now().Add(59*time.Second + 500*time.Millisecond),
			wantRetry: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &WindowState{ResetAt: tt.resetAt}
			if got := state.RetryAfterSeconds(); got != tt.wantRetry {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.wantRetry)
			}
		})
	}
}
