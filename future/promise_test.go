// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/reactorcore/errs"
)

type inlineExecutor struct {
	owner chan struct{}
	tasks []func()
	mu    sync.Mutex
}

func newInlineExecutor() *inlineExecutor {
	return &inlineExecutor{owner: make(chan struct{})}
}

func (e *inlineExecutor) InEventLoop() bool {
	select {
	case <-e.owner:
		return true
	default:
		return false
	}
}

func (e *inlineExecutor) Execute(task func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
}

func (e *inlineExecutor) runPending() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

func TestPromise_TrySuccessOnce(t *testing.T) {
	p := NewPromise[int](nil)
	if !p.TrySuccess(42) {
		t.Fatal("first TrySuccess should succeed")
	}
	if p.TrySuccess(7) {
		t.Fatal("second TrySuccess must fail")
	}
	if p.TryFailure(errors.New("x")) {
		t.Fatal("TryFailure after success must fail")
	}
	v, ok := p.GetNow()
	if !ok || v != 42 {
		t.Fatalf("GetNow = (%v, %v), want (42, true)", v, ok)
	}
}

func TestPromise_NilSuccessValueIsDone(t *testing.T) {
	p := NewPromise[*int](nil)
	p.TrySuccess(nil)
	v, ok := p.GetNow()
	if !ok {
		t.Fatal("GetNow should report done even though value is nil")
	}
	if v != nil {
		t.Fatalf("expected nil value, got %v", v)
	}
}

func TestPromise_ListenerNotifiedExactlyOnce(t *testing.T) {
	p := NewPromise[int](nil)
	var calls atomic.Int32
	p.AddListener(func(f Future[int]) { calls.Add(1) })
	p.TrySuccess(1)
	time.Sleep(10 * time.Millisecond) // global executor dispatch is async
	if got := calls.Load(); got != 1 {
		t.Fatalf("listener called %d times, want 1", got)
	}
}

func TestPromise_ListenerAddedAfterCompletion(t *testing.T) {
	p := NewPromise[int](nil)
	p.TrySuccess(1)
	done := make(chan struct{})
	p.AddListener(func(f Future[int]) { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener added post-completion was never notified")
	}
}

func TestPromise_InlineDispatchOnOwningThread(t *testing.T) {
	exec := newInlineExecutor()
	close(exec.owner) // pretend the calling goroutine is the owner
	p := NewPromise[int](exec)
	var ranInline bool
	p.AddListener(func(f Future[int]) { ranInline = true })
	p.TrySuccess(1)
	if !ranInline {
		t.Fatal("listener should run inline when completing thread owns the executor")
	}
}

func TestPromise_EnqueuedDispatchOffOwningThread(t *testing.T) {
	exec := &inlineExecutor{owner: make(chan struct{})} // never closed: never "in loop"
	p := NewPromise[int](exec)
	var ranInline bool
	p.AddListener(func(f Future[int]) { ranInline = true })
	p.TrySuccess(1)
	if ranInline {
		t.Fatal("listener must not run inline on a foreign thread")
	}
	exec.runPending()
	if !ranInline {
		t.Fatal("listener should have run once the executor drained its queue")
	}
}

func TestPromise_CancelRespectsUncancellable(t *testing.T) {
	p := NewPromise[int](nil)
	if !p.SetUncancellable() {
		t.Fatal("SetUncancellable should succeed on an incomplete promise")
	}
	if p.Cancel(false) {
		t.Fatal("Cancel must fail once uncancellable")
	}
}

func TestPromise_CancelTransitionsOnce(t *testing.T) {
	p := NewPromise[int](nil)
	if !p.Cancel(false) {
		t.Fatal("Cancel should succeed on a fresh promise")
	}
	if p.Cancel(false) {
		t.Fatal("second Cancel must fail")
	}
	if !p.IsCancelled() {
		t.Fatal("expected IsCancelled true")
	}
	if err := p.Sync(); err == nil {
		t.Fatal("Sync should rethrow the cancellation cause")
	}
}

func TestPromise_AwaitTimeout(t *testing.T) {
	p := NewPromise[int](nil)
	done, err := p.Await(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("Await should report false on timeout for an incomplete future")
	}
}

func TestPromise_AwaitZeroOnIncompleteReturnsFalseWithoutBlocking(t *testing.T) {
	p := NewPromise[int](nil)
	start := time.Now()
	done, err := p.Await(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected not-done")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Await took too long: %v", elapsed)
	}
}

func TestPromise_AwaitFromOwningThreadFailsFast(t *testing.T) {
	exec := newInlineExecutor()
	close(exec.owner)
	p := NewPromise[int](exec)
	_, err := p.Await(time.Second)
	if err == nil {
		t.Fatal("expected deadlock-avoidance error")
	}
	if !errors.Is(err, errs.IllegalState) {
		t.Fatalf("error not comparable via errors.Is(err, errs.IllegalState): %v", err)
	}
}

func TestPromise_SyncFromOwningThreadFailsFast(t *testing.T) {
	exec := newInlineExecutor()
	close(exec.owner)
	p := NewPromise[int](exec)
	err := p.Sync()
	if err == nil {
		t.Fatal("expected deadlock-avoidance error")
	}
	if !errors.Is(err, errs.IllegalState) {
		t.Fatalf("error not comparable via errors.Is(err, errs.IllegalState): %v", err)
	}
}

func TestPromise_RemoveListenerBeforeCompletion(t *testing.T) {
	p := NewPromise[int](nil)
	var called bool
	token := p.AddListener(func(f Future[int]) { called = true })
	p.RemoveListener(token)
	p.TrySuccess(1)
	time.Sleep(10 * time.Millisecond)
	if called {
		t.Fatal("removed listener must not be notified")
	}
}

func TestPromise_ListenerPanicIsolated(t *testing.T) {
	var caught bool
	old := ErrorSink
	ErrorSink = func(r any) { caught = true }
	defer func() { ErrorSink = old }()

	p := NewPromise[int](nil)
	var secondRan bool
	p.AddListener(func(f Future[int]) { panic("boom") })
	p.AddListener(func(f Future[int]) { secondRan = true })
	p.TrySuccess(1)
	time.Sleep(10 * time.Millisecond)
	if !caught {
		t.Fatal("panic should have been reported to ErrorSink")
	}
	if !secondRan {
		t.Fatal("sibling listener must still run after a panicking one")
	}
}
