package services

import (
	"fmt"
	"math"
	"testing"
)

func TestRolloutBucketRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		bucket := RolloutBucket(fmt.Sprintf("session-%d", i))
		if bucket < 0 || bucket >= 100 {
			t.Fatalf("bucket out of range for session-%d: %d", i, bucket)
		}
	}
}

func TestRolloutBucketDeterministic(t *testing.T) {
	ids := []string{"", "a", "9f2c4a1b7d3e5f60", "session-with-a-much-longer-identifier-value"}
	for _, id := range ids {
		first := RolloutBucket(id)
		for i := 0; i < 100; i++ {
			if got := RolloutBucket(id); got != first {
				t.Errorf("RolloutBucket(%q) flapped: %d then %d", id, first, got)
			}
		}
	}
}

func TestRolloutBucketConvergence(t *testing.T) {
	const samples = 20000
	const pct = 30

	selected := 0
	for i := 0; i < samples; i++ {
		if RolloutBucket(fmt.Sprintf("convergence-sample-%d", i)) < pct {
			selected++
		}
	}

	fraction := float64(selected) / float64(samples)
	if math.Abs(fraction-0.30) > 0.03 {
		t.Errorf("selected fraction %.3f, want ~0.30", fraction)
	}
}

func TestShouldUseRedisSessionsDisabled(t *testing.T) {
	svc := &FeatureFlagService{redisSessionsEnabled: false, rolloutPercentage: 100}
	if svc.ShouldUseRedisSessions("any-session") {
		t.Error("disabled flag must never select the redis path")
	}
}

func TestShouldUseRedisSessionsFullRollout(t *testing.T) {
	svc := &FeatureFlagService{redisSessionsEnabled: true, rolloutPercentage: 100}
	for i := 0; i < 100; i++ {
		if !svc.ShouldUseRedisSessions(fmt.Sprintf("s-%d", i)) {
			t.Fatalf("100%% rollout must select every session, missed s-%d", i)
		}
	}
}

func TestShouldUseRedisSessionsZeroRollout(t *testing.T) {
	svc := &FeatureFlagService{redisSessionsEnabled: true, rolloutPercentage: 0}
	for i := 0; i < 100; i++ {
		if svc.ShouldUseRedisSessions(fmt.Sprintf("s-%d", i)) {
			t.Fatalf("0%% rollout must select nothing, selected s-%d", i)
		}
	}
}

func TestShouldUseRedisSessionsStablePerSession(t *testing.T) {
	svc := &FeatureFlagService{redisSessionsEnabled: true, rolloutPercentage: 50}
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("stable-%d", i)
		first := svc.ShouldUseRedisSessions(id)
		for j := 0; j < 20; j++ {
			if svc.ShouldUseRedisSessions(id) != first {
				t.Fatalf("decision for %q flapped", id)
			}
		}
	}
}

func TestShouldUseRedisRateLimitInheritsBucketing(t *testing.T) {
	svc := &FeatureFlagService{redisRateLimitEnabled: true, rolloutPercentage: 50}
	key := "203.0.113.7"
	first := svc.ShouldUseRedisRateLimit(key)
	for i := 0; i < 50; i++ {
		if svc.ShouldUseRedisRateLimit(key) != first {
			t.Fatal("rate limit strategy selection flapped for a fixed key")
		}
	}

	disabled := &FeatureFlagService{redisRateLimitEnabled: false, rolloutPercentage: 100}
	if disabled.ShouldUseRedisRateLimit(key) {
		t.Error("disabled rate limit flag must never select redis")
	}
}
