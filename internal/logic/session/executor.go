package session

import (
	"context"
	"sync"
)

// executor runs posted functions one at a time, in order, on a single
// goroutine. It is the session's only control context: every state
// mutation and every platform callback continuation runs on it.
type executor struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

// post enqueues fn. It never blocks and returns false once the executor
// has been stopped.
func (e *executor) post(fn func()) bool {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// stop rejects further posts. Work already queued still runs.
func (e *executor) stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 {
			if e.stopped {
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			<-e.wake
			e.mu.Lock()
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// promise is a one-shot result delivered from the executor to a waiting
// caller. Only the first resolve or reject counts.
type promise[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

func (p *promise[T]) resolve(v T) {
	p.once.Do(func() {
		p.val = v
		close(p.done)
	})
}

func (p *promise[T]) reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// wait blocks until the promise settles or ctx ends. An abandoned promise
// still settles on the executor; the result is simply dropped.
func (p *promise[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// call posts fn to the executor and waits for the promise it settles.
func call[T any](ctx context.Context, e *executor, fn func(p *promise[T])) (T, error) {
	p := newPromise[T]()
	if !e.post(func() { fn(p) }) {
		var zero T
		return zero, ErrDisposed
	}
	return p.wait(ctx)
}
