// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/reactorcore/errs"
)

type state int32

const (
	stateIncomplete state = iota
	stateSuccess
	stateFailure
	stateCancelled
)

type registeredListener[V any] struct {
	token ListenerToken
	fn    Listener[V]
}

// Promise is the writable side of a Future[V]. A nil success value is a
// valid terminal outcome; callers must check the done flag returned by
// GetNow rather than comparing the value to its zero value.
type Promise[V any] struct {
	mu sync.Mutex

	st    atomic.Int32 // state, read lock-free by the done-checking fast paths
	value V
	cause error

	uncancellable bool

	listeners  []registeredListener[V]
	nextToken  ListenerToken
	notifiedAt int // index boundary: listeners[:notifiedAt] have been scheduled

	executor NotifyExecutor

	done chan struct{} // closed exactly once, at the terminal transition

	onCancel func() // optional hook run synchronously when Cancel actually transitions p
}

// NewPromise creates a Promise bound to executor, which receives enqueued
// listener-notification tasks whenever the completing thread is not the
// executor's own thread. Pass nil to bind to the global notification
// executor.
func NewPromise[V any](executor NotifyExecutor) *Promise[V] {
	if executor == nil {
		executor = GlobalExecutor()
	}
	return &Promise[V]{
		executor: executor,
		done:     make(chan struct{}),
	}
}

// Future returns the read-only view of p.
func (p *Promise[V]) Future() Future[V] { return p }

func (p *Promise[V]) IsDone() bool {
	return state(p.st.Load()) != stateIncomplete
}

func (p *Promise[V]) IsSuccess() bool {
	return state(p.st.Load()) == stateSuccess
}

func (p *Promise[V]) IsCancelled() bool {
	return state(p.st.Load()) == stateCancelled
}

func (p *Promise[V]) IsCancellable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return state(p.st.Load()) == stateIncomplete && !p.uncancellable
}

func (p *Promise[V]) Cause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

func (p *Promise[V]) GetNow() (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state(p.st.Load()) == stateSuccess {
		return p.value, true
	}
	var zero V
	return zero, false
}

// TrySuccess transitions p to success(value) if still incomplete. Returns
// false without side effects if p was already terminal.
func (p *Promise[V]) TrySuccess(value V) bool {
	return p.tryComplete(stateSuccess, value, nil)
}

// TryFailure transitions p to failure(cause) if still incomplete. Returns
// false without side effects if p was already terminal.
func (p *Promise[V]) TryFailure(cause error) bool {
	return p.tryComplete(stateFailure, *new(V), cause)
}

// SetUncancellable marks p as no longer cancellable, provided it is still
// incomplete. Returns false if p was already done (regardless of whether
// that was via cancellation).
func (p *Promise[V]) SetUncancellable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state(p.st.Load()) != stateIncomplete {
		return false
	}
	p.uncancellable = true
	return true
}

// Cancel implements Future.Cancel.
func (p *Promise[V]) Cancel(mayInterrupt bool) bool {
	p.mu.Lock()
	if state(p.st.Load()) != stateIncomplete || p.uncancellable {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()
	ok := p.tryComplete(stateCancelled, *new(V), errs.New(errs.KindCancellation, "future cancelled", nil))
	if ok && p.onCancel != nil {
		p.onCancel()
	}
	return ok
}

// SetCancelHook installs fn to run synchronously, once, the first time
// Cancel actually transitions p to cancelled. Intended for a promise's
// owner to splice cancellation back into whatever off-promise bookkeeping
// the cancelled operation needs removed — e.g. a scheduled task's heap
// entry. Must be called before p is handed to any other goroutine.
func (p *Promise[V]) SetCancelHook(fn func()) {
	p.onCancel = fn
}

func (p *Promise[V]) tryComplete(target state, value V, cause error) bool {
	p.mu.Lock()
	if state(p.st.Load()) != stateIncomplete {
		p.mu.Unlock()
		return false
	}
	p.value = value
	p.cause = cause
	p.st.Store(int32(target))
	close(p.done)
	pending := p.listeners[p.notifiedAt:]
	snapshot := make([]registeredListener[V], len(pending))
	copy(snapshot, pending)
	p.notifiedAt = len(p.listeners)
	p.mu.Unlock()

	p.dispatch(snapshot)
	return true
}

// AddListener implements Future.AddListener.
func (p *Promise[V]) AddListener(l Listener[V]) ListenerToken {
	p.mu.Lock()
	if state(p.st.Load()) == stateIncomplete {
		p.nextToken++
		token := p.nextToken
		p.listeners = append(p.listeners, registeredListener[V]{token: token, fn: l})
		p.mu.Unlock()
		return token
	}
	p.mu.Unlock()
	p.dispatch([]registeredListener[V]{{fn: l}})
	return 0
}

// AddListeners implements Future.AddListeners.
func (p *Promise[V]) AddListeners(ls ...Listener[V]) {
	for _, l := range ls {
		p.AddListener(l)
	}
}

// RemoveListener implements Future.RemoveListener. It only has an effect
// if the listener has not yet been scheduled for notification.
func (p *Promise[V]) RemoveListener(token ListenerToken) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := p.notifiedAt; i < len(p.listeners); i++ {
		if p.listeners[i].token == token {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

// dispatch runs or enqueues the given listeners per the inline-vs-enqueue
// rule: inline, in order, if the calling thread already is the executor's
// own thread; otherwise a single task that iterates all of them in order.
func (p *Promise[V]) dispatch(ls []registeredListener[V]) {
	if len(ls) == 0 {
		return
	}
	fut := Future[V](p)
	if p.executor.InEventLoop() {
		for _, l := range ls {
			runListenerSafely(func() { l.fn(fut) })
		}
		return
	}
	p.executor.Execute(func() {
		for _, l := range ls {
			runListenerSafely(func() { l.fn(fut) })
		}
	})
}

// Await implements Future.Await. timeout <= 0 performs a non-blocking,
// immediate done-check and never touches p.done.
func (p *Promise[V]) Await(timeout time.Duration) (bool, error) {
	if state(p.st.Load()) != stateIncomplete {
		return true, nil
	}
	if timeout <= 0 {
		return false, nil
	}
	if p.executor.InEventLoop() {
		return false, errs.ErrDeadlock
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

// awaitForever blocks until the future is done, regardless of timeout,
// failing fast if called from the owning loop's own thread.
func (p *Promise[V]) awaitForever() error {
	if state(p.st.Load()) != stateIncomplete {
		return nil
	}
	if p.executor.InEventLoop() {
		return errs.ErrDeadlock
	}
	<-p.done
	return nil
}

// Sync implements Future.Sync.
func (p *Promise[V]) Sync() error {
	if err := p.awaitForever(); err != nil {
		return err
	}
	switch state(p.st.Load()) {
	case stateFailure, stateCancelled:
		return p.cause
	default:
		return nil
	}
}
