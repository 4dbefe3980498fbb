package pool

import (
	"errors"
	"runtime/debug"
	"sync"

	"github.com/edwingeng/deque/v2"

	"github.com/leonardcser/kvd/internal/logger"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("pool: closed")

// Task is one unit of work, typically one connection's request/response cycle.
type Task func()

// Pool runs tasks on a fixed number of worker goroutines fed from an
// unbounded FIFO queue. Each pool owns its queue, mutex and condition
// variable.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *deque.Deque[Task]
	closed bool
	size   int
	wg     sync.WaitGroup
}

// New starts a pool with size workers. size < 1 is treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks: deque.NewDeque[Task](),
		size:  size,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Submit queues t and wakes one idle worker. It never runs t on the calling
// goroutine and never blocks on queue capacity.
func (p *Pool) Submit(t Task) error {
	if t == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.tasks.PushBack(t)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Close stops accepting tasks, lets the workers finish everything already
// queued and waits for them to exit. Close is safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks.Len()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		t, ok := p.next()
		if !ok {
			return
		}
		p.run(id, t)
	}
}

// next blocks until a task is available. It reports false once the pool is
// closed and the queue is drained.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.tasks.Len() == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}
	return p.tasks.PopFront(), true
}

func (p *Pool) run(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("pool: worker %d recovered from panic: %v\n%s", id, r, debug.Stack())
		}
	}()
	t()
}
