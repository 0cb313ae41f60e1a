// Package worker runs trade commands on a bounded pool so a burst of
// signals cannot spawn an unbounded number of in-flight swaps.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Kind tags a command for logging and drain accounting.
type Kind string

const (
	KindBuy       Kind = "BUY"
	KindSell      Kind = "SELL"
	KindSnipe     Kind = "SNIPE"
	KindRebalance Kind = "REBALANCE"
)

// Command is one unit of trading work.
type Command struct {
	Kind Kind
	// Label identifies the command in logs, typically "user/mint".
	Label string
	Run   func(ctx context.Context)
}

// Pool is a fixed-size worker pool. Stop is a graceful drain: no new
// submissions are accepted, but everything already queued still runs.
// An in-flight exit swap must never be cancelled halfway.
type Pool struct {
	queue  chan Command
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewPool starts workers goroutines consuming a queue of size queueLen.
func NewPool(workers, queueLen int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Command, queueLen),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for cmd := range p.queue {
		log.Debug().Str("kind", string(cmd.Kind)).Str("label", cmd.Label).Msg("command started")
		cmd.Run(p.ctx)
	}
}

// Submit enqueues a command. Returns false when the pool is stopped or
// the queue is full; the caller decides whether dropping the signal
// matters.
func (p *Pool) Submit(cmd Command) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}
	select {
	case p.queue <- cmd:
		return true
	default:
		log.Warn().Str("kind", string(cmd.Kind)).Str("label", cmd.Label).Msg("worker queue full, command dropped")
		return false
	}
}

// Stop drains the pool and waits for all accepted commands to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
