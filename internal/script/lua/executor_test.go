package lua

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startExecutor(t *testing.T, queueSize int) *Executor {
	t.Helper()
	exec := NewExecutor(NewState(), queueSize)
	go exec.Run()
	t.Cleanup(exec.Close)
	return exec
}

func TestNewExecutor_DefaultQueueSize(t *testing.T) {
	exec := NewExecutor(NewState(), 0)
	if cap(exec.queue) != 64 {
		t.Errorf("queue size = %d, want 64", cap(exec.queue))
	}
	go exec.Run()
	exec.Close()
}

func TestExecutor_Execute(t *testing.T) {
	exec := startExecutor(t, 8)

	var executed bool
	err := exec.Execute(context.Background(), func(s *State) error {
		executed = true
		return s.DoString(context.Background(), "x", "x = 1")
	})
	if err != nil {
		t.Fatal(err)
	}
	if !executed {
		t.Error("operation did not run")
	}

	boom := errors.New("boom")
	if err := exec.Execute(context.Background(), func(*State) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	exec := startExecutor(t, 8)

	err := exec.Execute(context.Background(), func(*State) error { panic("bad") })
	if err == nil {
		t.Fatal("expected panic error")
	}
	if err := exec.Execute(context.Background(), func(*State) error { return nil }); err != nil {
		t.Errorf("executor should survive a panic: %v", err)
	}
}

func TestExecutor_Serializes(t *testing.T) {
	exec := startExecutor(t, 128)

	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = exec.Execute(context.Background(), func(*State) error {
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(100 * time.Microsecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("operations ran concurrently")
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	exec := startExecutor(t, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exec.Execute(ctx, func(*State) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExecutor_QueueFull(t *testing.T) {
	exec := startExecutor(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = exec.Execute(context.Background(), func(*State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Fill the single slot.
	go func() { _ = exec.Execute(context.Background(), func(*State) error { return nil }) }()
	deadline := time.Now().Add(time.Second)
	for len(exec.queue) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	err := exec.Execute(context.Background(), func(*State) error { return nil })
	close(release)
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestExecutor_Close(t *testing.T) {
	exec := NewExecutor(NewState(), 8)
	go exec.Run()
	exec.Close()
	exec.Close()

	if !exec.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := exec.Execute(context.Background(), func(*State) error { return nil }); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("err = %v, want ErrExecutorClosed", err)
	}
	if !exec.state.closed {
		t.Error("state should be closed with the executor")
	}
}
