package shard

import (
	"errors"
	"sync"
	"time"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
)

// ErrRunnerClosed is returned for work submitted after Close.
var ErrRunnerClosed = errors.New("shard runner closed")

// Runner serializes all state access for one shard onto a single
// goroutine. A submitted turn runs to completion before the next one
// starts, so turns never observe each other's partial writes and the
// state packages need no locks. Long work must be split: anything that
// blocks on I/O to another system belongs between turns, not inside
// one.
type Runner struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewRunner starts the shard goroutine. buffer sizes the turn queue.
func NewRunner(buffer int) *Runner {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Runner{
		tasks:  make(chan func(), buffer),
		quit:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case fn := <-r.tasks:
			r.turn(fn)
		case <-r.quit:
			// drain whatever was already queued
			for {
				select {
				case fn := <-r.tasks:
					r.turn(fn)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) turn(fn func()) {
	start := time.Now()
	fn()
	telemetry.ObserveTurn(time.Since(start))
}

// Execute runs fn as one turn and blocks until it finishes.
func (r *Runner) Execute(fn func() error) error {
	done := make(chan error, 1)
	select {
	case r.tasks <- func() { done <- fn() }:
	case <-r.quit:
		return ErrRunnerClosed
	}
	select {
	case err := <-done:
		return err
	case <-r.quit:
		// the drain in loop() still runs queued turns; wait it out
		return <-done
	}
}

// Execute runs fn as one turn on r and returns its value. Free function
// because methods cannot carry type parameters.
func Execute[T any](r *Runner, fn func() (T, error)) (T, error) {
	var out T
	err := r.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// Schedule queues fn to run as a turn after delay. A second Schedule
// with the same key supersedes the first: the old timer is dropped and
// only the newest fires. Used for per-entity deadlines where only the
// latest schedule matters.
func (r *Runner) Schedule(key string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if old, ok := r.timers[key]; ok {
		old.Stop()
	}
	r.timers[key] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, key)
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
		if err := r.Execute(func() error { fn(); return nil }); err != nil {
			logger.Warn("scheduled_turn_dropped", "key", key, "error", err)
		}
	})
}

// Cancel drops a scheduled job if it has not fired.
func (r *Runner) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[key]; ok {
		t.Stop()
		delete(r.timers, key)
	}
}

// Close stops accepting turns, runs what was queued, and waits for the
// shard goroutine to exit. Pending timers are dropped.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for k, t := range r.timers {
		t.Stop()
		delete(r.timers, k)
	}
	r.mu.Unlock()
	close(r.quit)
	r.wg.Wait()
}
