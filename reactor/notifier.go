// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// notifier abstracts the OS readiness primitive (epoll on Linux; a
// reporting stub elsewhere) behind the handful of operations the run
// loop in loop.go needs. Its wait result is always a dense slice, which
// is precisely the section 4.6 readiness-set optimization: Go's
// unix.EpollWait already fills a caller-owned array rather than handing
// back a keyed/hash set, so no substitution step is needed on the
// platform that has one — the array *is* the optimized form.

package reactor

import (
	"errors"
	"time"
)

// errInterrupted is the distinguished wait() error for a signal
// interruption (EINTR on Linux): section 4.5 step 5 requires this to reset
// the spurious-wakeup counter and log, the same as a genuine rebuild, but
// unlike a genuine empty/spurious notifier return it must never itself
// count toward the rebuild threshold.
var errInterrupted = errors.New("reactor: notifier wait interrupted")

type readyEntry struct {
	fd  uintptr
	ops FDEventType
}

// notifier is implemented per-platform in notifier_linux.go / notifier_other.go.
type notifier interface {
	// registerFD begins monitoring fd for ops.
	registerFD(fd uintptr, ops FDEventType) error
	// modifyFD updates the interest mask for an already-registered fd.
	modifyFD(fd uintptr, ops FDEventType) error
	// cancelFD stops monitoring fd. Safe to call if fd was never registered.
	cancelFD(fd uintptr) error
	// wait blocks until at least one fd is ready or timeout elapses.
	// timeout < 0 blocks indefinitely; timeout == 0 polls without blocking.
	wait(timeout time.Duration) ([]readyEntry, error)
	// wakeup unblocks a concurrent wait call from any goroutine.
	wakeup()
	// close releases the notifier's OS resources.
	close() error
}
