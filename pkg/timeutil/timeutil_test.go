package timeutil

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestMaxDuration(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      time.Duration
	}{
		{
			name:      "multiple values returns maximum",
			durations: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond},
			want:      500 * time.Millisecond,
		},
		{
			name:      "single value returns that value",
			durations: []time.Duration{300 * time.Millisecond},
			want:      300 * time.Millisecond,
		},
		{
			name:      "empty slice returns zero",
			durations: []time.Duration{},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxDuration(tt.durations); got != tt.want {
				t.Errorf("MaxDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffDelay(t *testing.T) {
	param := NewBackoffParam(100*time.Millisecond, 2.0, 1*time.Second)
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, 1 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := ExponentialBackoffDelay(tt.attempt, 0, rng, param); got != tt.want {
			t.Errorf("attempt %d: delay = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoffDelay_JitterBounded(t *testing.T) {
	param := NewBackoffParam(100*time.Millisecond, 2.0, 1*time.Second)
	rng := rand.New(rand.NewSource(7))
	jitter := 50 * time.Millisecond

	for i := 0; i < 20; i++ {
		got := ExponentialBackoffDelay(1, jitter, rng, param)
		if got < 100*time.Millisecond || got >= 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 150ms)", got)
		}
	}
}

func TestRealSleeper_CancelledContextReturnsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewRealSleeper().Sleep(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("sleep did not return promptly: %v", elapsed)
	}
}

func TestRealSleeper_NonPositiveIsInstant(t *testing.T) {
	if err := NewRealSleeper().Sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
