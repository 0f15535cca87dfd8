package workers

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := NewPool(4)

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&ran, 1)
		})
	}
	wg.Wait()
	pool.Close()

	if ran != 50 {
		t.Fatalf("expected 50 tasks run, got %d", ran)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 2
	pool := NewPool(size)
	defer pool.Close()

	var active, peak int64
	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(func() {
				n := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				<-gate
				atomic.AddInt64(&active, -1)
			})
		}()
	}
	close(gate)
	wg.Wait()

	if peak > size {
		t.Fatalf("expected at most %d concurrent tasks, observed %d", size, peak)
	}
}

func TestPoolCloseWaitsForInflight(t *testing.T) {
	pool := NewPool(1)

	var done int64
	pool.Submit(func() {
		atomic.AddInt64(&done, 1)
	})
	pool.Close()

	if done != 1 {
		t.Fatal("close returned before the in-flight task finished")
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Close()
	pool.Close()
}
