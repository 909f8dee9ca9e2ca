package plugins

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollGuardThrottlesWithinInterval(t *testing.T) {
	g := NewPollGuard()
	var calls int32

	ran, err := g.Poll("k", time.Hour, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("first poll: ran=%v err=%v", ran, err)
	}

	ran, err = g.Poll("k", time.Hour, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil || ran {
		t.Fatalf("second poll should be throttled: ran=%v err=%v", ran, err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestPollGuardAllowsAfterIntervalElapses(t *testing.T) {
	g := NewPollGuard()
	if _, err := g.Poll("k", time.Millisecond, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	ran, err := g.Poll("k", time.Millisecond, func() error { return nil })
	if err != nil || !ran {
		t.Fatalf("expected poll to run after interval elapsed: ran=%v err=%v", ran, err)
	}
}

func TestPollGuardFailedPollDoesNotAdvanceClock(t *testing.T) {
	g := NewPollGuard()
	boom := errors.New("boom")

	ran, err := g.Poll("k", time.Hour, func() error { return boom })
	if !ran || err != boom {
		t.Fatalf("ran=%v err=%v", ran, err)
	}

	ran, err = g.Poll("k", time.Hour, func() error { return nil })
	if err != nil || !ran {
		t.Fatalf("expected retry to run since last failed poll never recorded: ran=%v err=%v", ran, err)
	}
}

func TestPollGuardSerializesConcurrentCallersForSameKey(t *testing.T) {
	g := NewPollGuard()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Poll("k", 0, func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxActive)
					if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("maxActive = %d, want 1 (polls for same key must serialize)", maxActive)
	}
}
