package execution

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// workerPool runs tasks on a fixed set of goroutines with a bounded queue.
type workerPool struct {
	tasks    chan func()
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

func newWorkerPool(workers, queue int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &workerPool{
		tasks: make(chan func(), queue),
		stop:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// submit enqueues task, blocking while the queue is full.
func (p *workerPool) submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return domain.ErrExecutorClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.stop:
		return domain.ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting tasks, runs whatever is queued and waits for the workers.
func (p *workerPool) close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stop)
	p.submitMu.Lock()
	close(p.tasks)
	p.submitMu.Unlock()
	p.wg.Wait()
}
