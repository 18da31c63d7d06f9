package analyses

import "sync"

// Pool bounds how many analysis runs execute at once so a burst of triggers
// cannot exhaust disk and network. Submissions beyond the cap queue on the
// semaphore inside their own goroutine.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit schedules fn; it never blocks the caller.
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		fn()
	}()
}

// Wait blocks until every submitted run has finished. Used on shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
