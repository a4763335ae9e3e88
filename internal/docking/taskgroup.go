package docking

import (
	"runtime"
	"sync"
)

// Pool is a fixed-size worker pool shared for the lifetime of a screening
// job. The engine dispatches three kinds of phases to it in sequence —
// scoring-function precomputation, grid-map population, and Monte Carlo
// restarts — each closed by a Group barrier before the next phase starts.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// NewPool starts workers goroutines. A non-positive count defaults to the
// available hardware concurrency.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{tasks: make(chan func(), workers)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

// Close stops the workers once all submitted tasks have drained. No Group
// may submit after Close.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}

// Group is one parallel phase: a set of independent tasks submitted to the
// pool, joined by a single barrier. The first task error is retained and
// returned by Wait; later errors are discarded. There is no mid-task
// cancellation — a failed phase simply drains.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

// NewGroup opens a phase on the pool.
func (p *Pool) NewGroup() *Group {
	return &Group{pool: p}
}

// Go submits one task. It may block until a worker is free; tasks begin
// executing as they are submitted.
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	g.pool.tasks <- func() {
		defer g.wg.Done()
		if err := fn(); err != nil {
			g.once.Do(func() { g.err = err })
		}
	}
}

// Wait blocks until every task submitted to the group has completed and
// returns the first error encountered, if any. Completed task output from a
// failed phase must be discarded by the caller.
func (g *Group) Wait() error {
	g.wg.Wait()
	return g.err
}
