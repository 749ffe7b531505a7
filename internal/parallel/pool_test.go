package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	const numTasks = 100

	work := make([]func(), numTasks)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	if errs := pool.ExecuteAll(work); errs != nil {
		t.Fatalf("ExecuteAll() = %v, want nil", errs)
	}
	if counter.Load() != numTasks {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
}

func TestWorkerPool_ExecuteAllWaitsForSlowTasks(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var mu sync.Mutex
	var done []int
	work := make([]func(), 6)
	for i := range work {
		work[i] = func() {
			time.Sleep(time.Duration(6-i) * time.Millisecond)
			mu.Lock()
			done = append(done, i)
			mu.Unlock()
		}
	}
	pool.ExecuteAll(work)

	if len(done) != len(work) {
		t.Errorf("completed %d tasks before ExecuteAll returned, want %d", len(done), len(work))
	}
}

func TestWorkerPool_ExecuteAllRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var ran atomic.Int64
	work := []func(){
		func() { ran.Add(1) },
		func() { panic("boom") },
		func() { ran.Add(1) },
	}
	errs := pool.ExecuteAll(work)

	if ran.Load() != 2 {
		t.Errorf("ran = %d, want 2", ran.Load())
	}
	if len(errs) != len(work) {
		t.Fatalf("len(errs) = %d, want %d", len(errs), len(work))
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("errs = %v, want only index 1 set", errs)
	}
	var pe *PanicError
	if !errors.As(errs[1], &pe) {
		t.Fatalf("errs[1] = %v, want *PanicError", errs[1])
	}
	if pe.Index != 1 || pe.Value != "boom" {
		t.Errorf("PanicError = {%d, %v}, want {1, boom}", pe.Index, pe.Value)
	}
}

func TestWorkerPool_ExecuteAllEmpty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	if errs := pool.ExecuteAll(nil); errs != nil {
		t.Errorf("ExecuteAll(nil) = %v, want nil", errs)
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	pool.ExecuteAll([]func(){
		func() { counter.Add(1) },
		func() { counter.Add(1) },
	})
	if counter.Load() != 2 {
		t.Errorf("counter = %d, want 2 (tasks run inline after Close)", counter.Load())
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	var ran atomic.Bool
	if errs := pool.ExecuteAll([]func(){func() { ran.Store(true) }}); errs != nil {
		t.Errorf("ExecuteAll() = %v, want nil", errs)
	}
	if !ran.Load() {
		t.Error("task did not run after Close")
	}
}
