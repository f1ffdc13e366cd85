package httpmiddleware

import "testing"

func TestAllowExhaustsPerMinuteBudget(t *testing.T) {
	rl := NewIPRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be within budget", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over budget should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("budgets are per IP; a different client must not be affected")
	}
}

func TestAllowDefaultsWhenUnconfigured(t *testing.T) {
	rl := NewIPRateLimiter(0)
	if !rl.allow("10.0.0.1") {
		t.Error("zero config should fall back to a sane default, not block")
	}
}
