package ratelimit

import "testing"

func TestAllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(100, 1, 5)

	for i := 0; i < 5; i++ {
		if !rl.Allow("user-1") {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if rl.Allow("user-1") {
		t.Error("request beyond burst should be denied")
	}
}

func TestPerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(100, 1, 1)

	if !rl.Allow("user-a") {
		t.Fatal("first request for user-a should be allowed")
	}
	if rl.Allow("user-a") {
		t.Error("second request for user-a should be denied")
	}
	if !rl.Allow("user-b") {
		t.Error("user-b should have an independent bucket")
	}
}

func TestGlobalLimitCapsAllUsers(t *testing.T) {
	// Global burst of 2 (rate*2) with generous per-user limits
	rl := NewRateLimiter(1, 100, 100)

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("user-" + string(rune('a'+i))) {
			allowed++
		}
	}
	if allowed > 3 {
		t.Errorf("global limiter should cap requests, got %d allowed", allowed)
	}
}
