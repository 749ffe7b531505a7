// Package parallel runs the export pipeline's per-object tasks on a bounded
// set of goroutines.
package parallel

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicError is returned by ExecuteAll for a task that panicked. The pool
// keeps running; the remaining tasks are unaffected.
type PanicError struct {
	Index int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: task %d panicked: %v", e.Index, e.Value)
}

// WorkerPool is a fixed set of goroutines pulling tasks from a shared queue.
//
// Reconstruction tasks are dominated by decoding, so there is no per-worker
// affinity: any idle worker takes the next task.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queue   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), workers*2),
		done:    make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			// Finish what was queued before Close.
			for {
				select {
				case work := <-p.queue:
					work()
				default:
					return
				}
			}
		case work := <-p.queue:
			work()
		}
	}
}

// ExecuteAll runs every task and blocks until all have returned.
// Tasks that panic are reported as *PanicError values in the returned
// slice, indexed like work; the slice is nil when no task panicked.
// If the pool is closed, tasks run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(work []func()) []error {
	if len(work) == 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		panics []error
	)
	record := func(err error, i int) {
		mu.Lock()
		defer mu.Unlock()
		if panics == nil {
			panics = make([]error, len(work))
		}
		panics[i] = err
	}

	wg.Add(len(work))
	for i, fn := range work {
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					record(&PanicError{Index: i, Value: r, Stack: debug.Stack()}, i)
				}
			}()
			fn()
		}
		if !p.running.Load() {
			task()
			continue
		}
		select {
		case p.queue <- task:
		case <-p.done:
			task()
		}
	}
	wg.Wait()
	return panics
}

// Close stops accepting work, waits for queued tasks and stops the workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int { return p.workers }
