package server

import (
	"context"
	"sync"
	"time"
)

// TickerService invokes a callback once per interval until stopped.
//
// Invariant: the callback is never invoked concurrently with itself.
type TickerService struct {
	interval time.Duration
	fn       func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTickerService returns a service that calls fn every interval.
//
// Precondition: interval must be > 0; fn must be non-nil.
func NewTickerService(interval time.Duration, fn func()) *TickerService {
	if interval <= 0 {
		panic("server.NewTickerService: interval must be > 0")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerService{interval: interval, fn: fn, ctx: ctx, cancel: cancel}
}

// Start runs the tick loop and blocks until Stop is called.
func (t *TickerService) Start() error {
	t.wg.Add(1)
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return nil
		case <-ticker.C:
			t.fn()
		}
	}
}

// Stop ends the tick loop and waits for an in-progress callback to return.
func (t *TickerService) Stop() {
	t.cancel()
	t.wg.Wait()
}
