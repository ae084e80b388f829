// Package compute provides a priority-ordered background task pool for
// work systems want to run off the frame's critical path (pathfinding,
// asset decode, procedural generation) without touching the World from a
// background goroutine. Tasks run on worker goroutines as soon as a slot
// frees up; anything that must run on the main thread — because it reads
// or mutates a World — is registered as a completion callback and only
// invoked when the driving code calls one of the Tick functions, so
// background completions interleave with system execution rather than
// running unsupervised against a World.
package compute

import (
	"container/heap"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	ecs "github.com/redlilium/ecs"
)

type erasedTask struct {
	priority ecs.Priority
	seq      uint64
	runFn    func() // closes over the typed result slot; set by Spawn

	mu        sync.Mutex
	cancelled bool
	done      bool
	err       any // recovered panic value, if the task function panicked
	doneCh    chan struct{}

	onComplete func() // set via OnComplete, invoked by Tick* on the calling goroutine
}

// taskHeap orders by priority descending, then by sequence ascending: higher
// priority always polls before lower priority, FIFO within a priority.
type taskHeap []*erasedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*erasedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Pool runs spawned work on a bounded set of worker goroutines and funnels
// completions back to whichever goroutine calls Tick/TickAll/TickWithBudget.
type Pool struct {
	workMu sync.Mutex
	workCv *sync.Cond
	work   taskHeap
	seq    uint64
	closed bool

	completedMu sync.Mutex
	completed   []*erasedTask
}

// NewPool starts workers background goroutines pulling from the priority
// queue. workers must be >= 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	p.workCv = sync.NewCond(&p.workMu)
	for i := 0; i < workers; i++ {
		go p.workerLoop()
	}
	return p
}

// Close stops accepting new work and wakes every idle worker so they can
// exit. Already-running tasks finish normally.
func (p *Pool) Close() {
	p.workMu.Lock()
	p.closed = true
	p.workCv.Broadcast()
	p.workMu.Unlock()
}

func (p *Pool) workerLoop() {
	for {
		p.workMu.Lock()
		for len(p.work) == 0 && !p.closed {
			p.workCv.Wait()
		}
		if len(p.work) == 0 && p.closed {
			p.workMu.Unlock()
			return
		}
		t := heap.Pop(&p.work).(*erasedTask)
		p.workMu.Unlock()

		t.mu.Lock()
		cancelled := t.cancelled
		t.mu.Unlock()
		if cancelled {
			p.finish(t)
			continue
		}

		p.runTask(t)
	}
}

func (p *Pool) runTask(t *erasedTask) {
	fn := t.runFn
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.mu.Lock()
				t.err = r
				t.mu.Unlock()
			}
		}()
		fn()
	}()
	p.finish(t)
}

func (p *Pool) finish(t *erasedTask) {
	t.mu.Lock()
	t.done = true
	close(t.doneCh)
	t.mu.Unlock()

	p.completedMu.Lock()
	p.completed = append(p.completed, t)
	p.completedMu.Unlock()
}

func (p *Pool) submit(t *erasedTask) {
	p.workMu.Lock()
	t.seq = p.seq
	p.seq++
	heap.Push(&p.work, t)
	p.workCv.Signal()
	p.workMu.Unlock()
}

// TaskHandle is the typed handle Spawn returns. A handle is only valid for
// the T it was spawned with.
type TaskHandle[T any] struct {
	task *erasedTask
	slot *T // set by runFn once the task finishes
}

// Spawn schedules fn to run on a worker goroutine at the given priority
// and returns a handle to its eventual result.
func Spawn[T any](p *Pool, priority ecs.Priority, fn func() T) TaskHandle[T] {
	h := TaskHandle[T]{task: &erasedTask{priority: priority, doneCh: make(chan struct{})}, slot: new(T)}
	h.task.runFn = func() { *h.slot = fn() }
	p.submit(h.task)
	return h
}

// IsDone reports whether the task has finished (successfully, by panic, or
// by cancellation).
func (h TaskHandle[T]) IsDone() bool {
	h.task.mu.Lock()
	defer h.task.mu.Unlock()
	return h.task.done
}

// IsCancelled reports whether Cancel has been called on the task, whether
// or not it had already started.
func (h TaskHandle[T]) IsCancelled() bool {
	h.task.mu.Lock()
	defer h.task.mu.Unlock()
	return h.task.cancelled
}

// Cancel marks the task cancelled. If it has not started running yet, the
// worker skips it entirely (cooperative — a task already running is not
// interrupted).
func (h TaskHandle[T]) Cancel() {
	h.task.mu.Lock()
	h.task.cancelled = true
	h.task.mu.Unlock()
}

// TryRecv returns the result without blocking if the task is done,
// otherwise (zero, false).
func (h TaskHandle[T]) TryRecv() (T, bool) {
	select {
	case <-h.task.doneCh:
		return *h.slot, true
	default:
		var zero T
		return zero, false
	}
}

// Recv blocks until the task completes and returns its result.
func (h TaskHandle[T]) Recv() T {
	<-h.task.doneCh
	return *h.slot
}

// RecvTimeout blocks until the task completes or d elapses.
func (h TaskHandle[T]) RecvTimeout(d time.Duration) (T, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.task.doneCh:
		return *h.slot, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}

// OnComplete registers fn to run on whichever goroutine next calls
// Tick/TickAll/TickWithBudget after this task finishes. Exactly one
// callback may be registered per handle; a later call replaces the
// former. Use this instead of Recv whenever fn needs to touch a World.
func (h TaskHandle[T]) OnComplete(fn func(T)) {
	h.task.mu.Lock()
	h.task.onComplete = func() { fn(*h.slot) }
	h.task.mu.Unlock()
}

// BlockOn spawns fn at Critical priority and blocks the calling goroutine
// until it completes, for call sites that need a synchronous result and
// accept paying for it with a stall.
func BlockOn[T any](p *Pool, fn func() T) T {
	return Spawn(p, ecs.PriorityCritical, fn).Recv()
}

// ---- draining completions on the calling goroutine ----

// Tick runs at most one pending OnComplete callback. Returns whether one
// ran.
func (p *Pool) Tick() bool {
	for {
		t := p.popCompleted()
		if t == nil {
			return false
		}
		if p.invoke(t) {
			return true
		}
	}
}

// TickAll runs every currently pending OnComplete callback and returns how
// many ran.
func (p *Pool) TickAll() int {
	n := 0
	for p.Tick() {
		n++
	}
	return n
}

// TickWithBudget runs pending callbacks until budget elapses or the
// completion queue drains, whichever comes first.
func (p *Pool) TickWithBudget(budget time.Duration) int {
	deadline := time.Now().Add(budget)
	n := 0
	for time.Now().Before(deadline) {
		if !p.Tick() {
			break
		}
		n++
	}
	return n
}

// TickExtract drains every completed-but-uncalled task without invoking
// OnComplete, for callers that polled results via TryRecv/Recv directly
// and just want the completion queue cleared.
func (p *Pool) TickExtract() int {
	p.completedMu.Lock()
	n := len(p.completed)
	p.completed = nil
	p.completedMu.Unlock()
	return n
}

func (p *Pool) popCompleted() *erasedTask {
	p.completedMu.Lock()
	defer p.completedMu.Unlock()
	if len(p.completed) == 0 {
		return nil
	}
	t := p.completed[0]
	p.completed = p.completed[1:]
	return t
}

func (p *Pool) invoke(t *erasedTask) bool {
	t.mu.Lock()
	cb := t.onComplete
	t.onComplete = nil
	t.mu.Unlock()
	if cb == nil {
		return false
	}
	cb()
	return true
}

// ---- cooperative yielding ----

var yieldInterval int64 = 64
var yieldCounter int64

// SetYieldInterval configures how many YieldNow calls elapse between
// actual runtime.Gosched() calls process-wide. Lower values yield more
// often (fairer, slower); higher values yield less (faster, coarser).
func SetYieldInterval(n int64) {
	if n < 1 {
		n = 1
	}
	atomic.StoreInt64(&yieldInterval, n)
}

// YieldNow cooperatively yields the calling goroutine's time slice every
// Nth call, per the configured yield interval, for long-running task
// bodies that want to stay responsive without yielding every iteration.
func YieldNow() {
	if atomic.AddInt64(&yieldCounter, 1)%atomic.LoadInt64(&yieldInterval) == 0 {
		runtime.Gosched()
	}
}
