package taskmgr

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_SubmitBoundsConcurrency(t *testing.T) {
	m := NewManager(2, nil)
	var current, max int32

	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		if err := m.Submit(context.Background(), id, func(ctx context.Context) {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&max)
				if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		}); err != nil {
			t.Fatal(err)
		}
	}

	m.Shutdown(2 * time.Second)
	if max > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", max)
	}
}

func TestManager_ShutdownCancelsSurvivors(t *testing.T) {
	m := NewManager(1, nil)
	started := make(chan struct{})
	cancelled := make(chan struct{})

	m.Submit(context.Background(), "slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})

	<-started
	m.Shutdown(10 * time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected survivor task to be cancelled on shutdown")
	}
}

func TestManager_DuplicateTaskIDRejected(t *testing.T) {
	m := NewManager(1, nil)
	block := make(chan struct{})
	m.Submit(context.Background(), "dup", func(ctx context.Context) { <-block })

	if err := m.Submit(context.Background(), "dup", func(ctx context.Context) {}); err == nil {
		t.Fatal("expected duplicate task id to be rejected")
	}
	close(block)
	m.Shutdown(time.Second)
}
