package api

import (
	"fmt"
	"testing"
)

func TestRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1.0, 3)

	for i := range 3 {
		if !rl.allow("192.0.2.1") {
			t.Fatalf("request %d denied, want allowed within burst", i+1)
		}
	}
	if rl.allow("192.0.2.1") {
		t.Error("request beyond burst allowed, want denied")
	}

	// Other IPs have their own bucket.
	if !rl.allow("192.0.2.2") {
		t.Error("fresh IP denied, want allowed")
	}
}

func TestRateLimiterIndependentBuckets(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1.0, 1)

	for i := range 10 {
		ip := fmt.Sprintf("198.51.100.%d", i)
		if !rl.allow(ip) {
			t.Errorf("first request from %s denied", ip)
		}
		if rl.allow(ip) {
			t.Errorf("second request from %s allowed, want denied", ip)
		}
	}
}
