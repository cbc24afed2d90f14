package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterEnforcesQuota(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	defer limiter.Close()

	if !limiter.Allow("ip-1") {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("ip-1") {
		t.Fatal("second request should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatal("third request should be blocked")
	}
	// A different key has its own window.
	if !limiter.Allow("ip-2") {
		t.Fatal("unrelated key should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redis.Close()
	if limiter.Allow("ip-1") {
		t.Fatal("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterConstructorValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second); err == nil {
		t.Fatal("expected error for empty redis addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 0, time.Second); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
