package workers

import "sync"

// Pool is a process-wide bounded worker pool. It is started once at
// process init, shared across all in-flight orchestrations, and drained
// at shutdown.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool starts size workers. Submissions block while all workers are
// busy, which bounds concurrency without unbounded queueing.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{tasks: make(chan func())}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit schedules a task on the pool. Safe for concurrent use.
// Submitting after Close panics.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
