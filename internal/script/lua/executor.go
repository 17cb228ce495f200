package lua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// call is one operation queued for the executor goroutine.
type call struct {
	ctx    context.Context
	fn     func(s *State) error
	result chan error
}

// Executor serializes every operation on a State through one goroutine.
//
//	exec := NewExecutor(state, 64)
//	go exec.Run()
//	defer exec.Close()
//
//	err := exec.Execute(ctx, func(s *State) error {
//	    _, err := s.Call(ctx, fn)
//	    return err
//	})
type Executor struct {
	state *State
	queue chan *call
	done  chan struct{}
	exit  chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewExecutor creates an executor for state. queueSize bounds the number of
// pending operations.
func NewExecutor(state *State, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Executor{
		state: state,
		queue: make(chan *call, queueSize),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
}

// Run processes queued operations until Close is called, then closes the
// state. It must run on its own goroutine.
func (e *Executor) Run() {
	defer close(e.exit)
	defer e.state.Close()

	for {
		select {
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		case c := <-e.queue:
			if err := c.ctx.Err(); err != nil {
				// Caller already gave up.
				c.result <- err
				continue
			}
			c.result <- e.execute(c)
		}
	}
}

// execute runs one operation with panic recovery.
func (e *Executor) execute(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua executor: panic: %v", r)
		}
	}()
	return c.fn(e.state)
}

func (e *Executor) drain(err error) {
	for {
		select {
		case c := <-e.queue:
			c.result <- err
		default:
			return
		}
	}
}

// Execute queues fn and waits for it to finish or for ctx to end.
// If ctx ends first the operation may still run later; when it is dequeued
// after ctx ended it is skipped.
func (e *Executor) Execute(ctx context.Context, fn func(s *State) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
	default:
		return ErrQueueFull
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.result:
		return err
	}
}

// Close stops the executor. Pending operations fail with ErrExecutorClosed.
// Close waits for the running operation, if any, to finish, so Run must have
// been started.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
	<-e.exit
}

// IsClosed reports whether Close has been called.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
