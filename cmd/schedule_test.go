package cmd

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingCache struct {
	resets atomic.Int32
}

func (c *countingCache) Reset() { c.resets.Add(1) }

func TestStartCacheResetDisabled(t *testing.T) {
	t.Parallel()

	c, err := startCacheReset("  ")
	if err != nil {
		t.Fatalf("startCacheReset() error = %v", err)
	}
	if c != nil {
		t.Fatal("startCacheReset() returned a scheduler for an empty schedule")
	}
}

func TestStartCacheResetRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	if _, err := startCacheReset("every tuesday", &countingCache{}); err == nil {
		t.Fatal("startCacheReset() error = nil, want parse error")
	}
}

func TestStartCacheResetRuns(t *testing.T) {
	t.Parallel()

	a, b := &countingCache{}, &countingCache{}
	c, err := startCacheReset("@every 1s", a, b)
	if err != nil {
		t.Fatalf("startCacheReset() error = %v", err)
	}
	defer c.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for a.resets.Load() == 0 || b.resets.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("resets = %d/%d after 5s", a.resets.Load(), b.resets.Load())
		}
		time.Sleep(50 * time.Millisecond)
	}
}
