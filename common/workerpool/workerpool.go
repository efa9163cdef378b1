// Package workerpool implements a simple, resizable worker pool with
// exponential backoff applied to a worker after each failed job.
package workerpool

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/CortexLM/challenge/common/logging"
)

var logger = logging.GetLogger("common/workerpool")

// BackoffConfig configures the pool's failure backoff.
type BackoffConfig struct {
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Backoff, if set, makes the worker whose job failed sleep for an
	// exponentially growing delay before it takes its next job; any
	// success resets the delay to zero.
	Backoff *BackoffConfig
}

// poolBackoff tracks the current failure backoff, exposing the pending
// delay separately from advancing it so that it can be inspected (by
// tests and metrics) without perturbing the sequence.
type poolBackoff struct {
	eb      *backoff.ExponentialBackOff
	current time.Duration
}

func newPoolBackoff(cfg *BackoffConfig) *poolBackoff {
	if cfg == nil {
		return &poolBackoff{}
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.MinTimeout
	eb.MaxInterval = cfg.MaxTimeout
	eb.MaxElapsedTime = 0
	return &poolBackoff{eb: eb}
}

// Timeout returns the current backoff delay without advancing it.
func (b *poolBackoff) Timeout() time.Duration {
	return b.current
}

// Next advances the backoff and returns the delay to apply.
func (b *poolBackoff) Next() time.Duration {
	if b.eb == nil {
		return 0
	}
	b.current = b.eb.NextBackOff()
	return b.current
}

// Reset clears the backoff back to zero delay.
func (b *poolBackoff) Reset() {
	if b.eb != nil {
		b.eb.Reset()
	}
	b.current = 0
}

// Pool is a resizable pool of goroutines that execute submitted jobs.
//
// Submit blocks once 64 jobs are queued and not yet taken by a worker,
// and the number of goroutines can be changed at runtime via Resize. Jobs
// are taken from the queue in submission order; with more than one worker
// they may complete in a different order.
type Pool struct {
	name string

	mu      sync.Mutex
	jobCh   chan job
	closers []chan struct{}

	backoff *poolBackoff
}

type job struct {
	fn     func() error
	doneCh chan error
}

// New creates a new, initially zero-sized Pool.
func New(name string, cfg *PoolConfig) *Pool {
	var bCfg *BackoffConfig
	if cfg != nil {
		bCfg = cfg.Backoff
	}
	return &Pool{
		name:    name,
		jobCh:   make(chan job, 64),
		backoff: newPoolBackoff(bCfg),
	}
}

// Resize changes the number of active worker goroutines to n.
func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := len(p.closers)
	switch {
	case n > cur:
		for i := cur; i < n; i++ {
			closeCh := make(chan struct{})
			p.closers = append(p.closers, closeCh)
			go p.worker(closeCh)
		}
	case n < cur:
		for i := n; i < cur; i++ {
			close(p.closers[i])
		}
		p.closers = p.closers[:n]
	}
}

func (p *Pool) worker(closeCh chan struct{}) {
	for {
		select {
		case <-closeCh:
			return
		case j := <-p.jobCh:
			err := j.fn()
			p.recordOutcome(err)
			j.doneCh <- err
			close(j.doneCh)
		}
	}
}

func (p *Pool) recordOutcome(err error) {
	if err == nil {
		p.mu.Lock()
		p.backoff.Reset()
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	d := p.backoff.Next()
	p.mu.Unlock()

	if d > 0 {
		logger.Debug("job failed, backing off", "pool", p.name, "delay", d, "err", err)
		time.Sleep(d)
	}
}

// Submit enqueues fn for execution by the pool and returns a channel that
// receives its error result exactly once.
func (p *Pool) Submit(fn func() error) <-chan error {
	doneCh := make(chan error, 1)
	p.jobCh <- job{fn: fn, doneCh: doneCh}
	return doneCh
}
