// Package workpool provides the render engine's data-parallel dispatch: a
// bounded goroutine pool plus a per-stage join. Workers are independent
// straight-line code; the pool enforces only the join-all barrier between
// stages, nothing more.
package workpool

import "sync"

// Pool runs stage dispatches across a bounded number of worker streams.
type Pool struct {
	streams int
}

// New returns a Pool with the given number of concurrent worker streams.
// streams <= 0 defaults to 4.
func New(streams int) *Pool {
	if streams <= 0 {
		streams = 4
	}
	return &Pool{streams: streams}
}

// Dispatch invokes fn(i) for every i in [0, n), running up to p.streams
// invocations concurrently, and returns only once every invocation has
// completed. No worker waits on another except at this join.
func (p *Pool) Dispatch(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n == 1 {
		fn(0)
		return
	}
	sem := make(chan struct{}, p.streams)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// DispatchErr is Dispatch for worker functions that can fail; the first
// error observed (in index order, not necessarily completion order) is
// returned after every worker has finished.
func (p *Pool) DispatchErr(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	errs := make([]error, n)
	p.Dispatch(n, func(i int) {
		errs[i] = fn(i)
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Streams returns the configured worker-stream count.
func (p *Pool) Streams() int { return p.streams }
