package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/gammazero/workerpool"

	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/util"
)

// Pool tuning.
const (
	DefaultWorkers  = 3 // concurrent detection workers
	DefaultReadyCap = 3 // released results kept for the reply path
)

var (
	// ErrDetectionTimeout means no result was ready within the caller's budget.
	ErrDetectionTimeout = errors.New("detection timeout")

	// ErrPoolClosed is returned once Close has been called.
	ErrPoolClosed = errors.New("detection pool closed")
)

// Result is the outcome of one detection task.
type Result struct {
	Seq   uint32 // submission order, from 1
	Index int    // animation tick carried by the source frame
	Coord media.Coordinate
	Err   error // non-nil if the detector panicked
}

// Pool runs a Detector on a fixed number of workers and hands results back
// strictly in submission order.
//
// At most `workers` frames are in flight; Submit refuses more instead of
// queueing, so the reply path never waits behind a backlog. Released results
// wait in a bounded FIFO; when it is full the oldest result is dropped.
type Pool struct {
	det      Detector
	wp       *workerpool.WorkerPool
	workers  int
	readyCap int

	seq seqGen

	mu       sync.Mutex
	inflight int
	closed   bool
	order    *sequencer
	ready    *deque.Deque[Result]
	notify   chan struct{}
}

// NewPool creates a pool with the given number of workers (DefaultWorkers if
// workers < 1).
func NewPool(det Detector, workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pool{
		det:      det,
		wp:       workerpool.New(workers),
		workers:  workers,
		readyCap: DefaultReadyCap,
		order:    newSequencer(),
		ready:    deque.New[Result](DefaultReadyCap),
		notify:   make(chan struct{}, 1),
	}
}

// Submit dispatches detection of f. It returns false without blocking when
// every worker is busy or the pool is closed; the frame is then skipped.
func (p *Pool) Submit(f media.Frame) bool {
	p.mu.Lock()
	if p.closed || p.inflight >= p.workers {
		p.mu.Unlock()
		return false
	}
	p.inflight++
	// Assigned under the lock so accepted tasks have gap-free numbers.
	seq := p.seq.next()
	p.mu.Unlock()

	p.wp.Submit(func() {
		p.complete(p.run(seq, f))
	})
	return true
}

// run executes the detector, turning a panic into an errored result so the
// sequencer never waits on a number that will not arrive.
func (p *Pool) run(seq uint32, f media.Frame) (r Result) {
	r = Result{Seq: seq, Index: f.Index}
	defer func() {
		if v := recover(); v != nil {
			r.Err = fmt.Errorf("detector panic on frame %d: %v", f.Seq, v)
		}
	}()
	r.Coord = p.det.Detect(f.Image)
	return r
}

// complete records a finished task and releases whatever is now in order.
func (p *Pool) complete(r Result) {
	p.mu.Lock()
	p.inflight--
	for _, rel := range p.order.feed(r) {
		if rel.Err != nil {
			util.LogWarning("%v", rel.Err)
			continue
		}
		if p.ready.Len() >= p.readyCap {
			stale := p.ready.PopFront()
			util.LogDebug("dropping stale detection seq=%d", stale.Seq)
		}
		p.ready.PushBack(rel)
	}
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// TryNext returns the oldest released result, if any, without waiting.
func (p *Pool) TryNext() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready.Len() == 0 {
		return Result{}, false
	}
	return p.ready.PopFront(), true
}

// TryLatest returns the newest released result, if any, discarding the older
// ones still waiting.
func (p *Pool) TryLatest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready.Len() == 0 {
		return Result{}, false
	}
	for p.ready.Len() > 1 {
		stale := p.ready.PopFront()
		util.LogDebug("skipping stale detection seq=%d", stale.Seq)
	}
	return p.ready.PopFront(), true
}

// Latest is Next for the reply path: it waits up to wait for a released
// result and returns the newest one, so a reply describes the frame current
// when it was requested rather than a backlog entry.
func (p *Pool) Latest(ctx context.Context, wait time.Duration) (Result, error) {
	return p.await(ctx, wait, p.TryLatest)
}

// Next waits up to wait for the oldest released result. It returns
// ErrDetectionTimeout when the budget runs out, which callers recover from
// locally.
func (p *Pool) Next(ctx context.Context, wait time.Duration) (Result, error) {
	return p.await(ctx, wait, p.TryNext)
}

func (p *Pool) await(ctx context.Context, wait time.Duration, take func() (Result, bool)) (Result, error) {
	if r, ok := take(); ok {
		return r, nil
	}
	if wait <= 0 {
		return Result{}, ErrDetectionTimeout
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-p.notify:
			if r, ok := take(); ok {
				return r, nil
			}
		case <-timer.C:
			return Result{}, ErrDetectionTimeout
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// InFlight returns the number of frames currently being detected.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

// Close stops accepting frames and waits up to timeout for running workers.
// After the timeout the pool is abandoned: running workers finish in the
// background and their results are never read.
func (p *Pool) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wp.StopWait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: workers still running after %s", ErrPoolClosed, timeout)
	}
}
