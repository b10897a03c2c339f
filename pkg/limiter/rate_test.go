package limiter_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/lore-crawler/pkg/limiter"
)

func TestResolveDelay_UnknownHostNeedsNoDelay(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(1 * time.Second)

	if got := rl.ResolveDelay("fresh.test"); got != 0 {
		t.Errorf("unknown host delay = %v, want 0", got)
	}
}

func TestResolveDelay_EnforcesBaseDelay(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(500 * time.Millisecond)

	rl.MarkLastFetchAsNow("host.test")
	delay := rl.ResolveDelay("host.test")
	if delay <= 0 || delay > 500*time.Millisecond {
		t.Errorf("delay = %v, want within (0, 500ms]", delay)
	}
}

func TestResolveDelay_CrawlDelayOverridesSmallerBase(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(100 * time.Millisecond)
	rl.SetCrawlDelay("host.test", 2*time.Second)

	rl.MarkLastFetchAsNow("host.test")
	delay := rl.ResolveDelay("host.test")
	if delay <= 1*time.Second {
		t.Errorf("delay = %v, want crawl-delay dominated (> 1s)", delay)
	}
}

func TestBackoffGrowsAndResets(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.MarkLastFetchAsNow("host.test")

	rl.Backoff("host.test")
	first := rl.ResolveDelay("host.test")

	rl.Backoff("host.test")
	second := rl.ResolveDelay("host.test")

	if second <= first {
		t.Errorf("backoff should grow: first %v, second %v", first, second)
	}

	rl.ResetBackoff("host.test")
	if got := rl.ResolveDelay("host.test"); got > first {
		t.Errorf("after reset delay = %v, want <= %v", got, first)
	}
}

func TestHostsAreIndependent(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(1 * time.Second)

	rl.MarkLastFetchAsNow("a.test")
	if got := rl.ResolveDelay("b.test"); got != 0 {
		t.Errorf("b.test delay = %v, want 0 (a.test timing must not leak)", got)
	}
}
