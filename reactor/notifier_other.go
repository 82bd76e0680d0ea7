//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-Linux platforms get a notifier that fails at construction, matching
// the teacher's own reactor_stub.go behavior for unsupported platforms. An
// IOCP binding (the teacher's iocp_reactor.go / reactor_windows.go) was
// evaluated and dropped: IOCP reports completed I/O, not readiness, so the
// readiness-dispatch algorithm in loop.go (interest masks, level-triggered
// re-arm, the three-callback Handler contract) has nothing to bind to
// without becoming a second, structurally different run loop. See
// DESIGN.md for the full justification.

package reactor

import (
	"time"

	"github.com/momentics/reactorcore/errs"
)

type unsupportedNotifier struct{}

func newNotifier() (notifier, error) {
	return nil, errs.New(errs.KindIO, "reactor: no readiness notifier implementation on this platform", nil)
}

func (unsupportedNotifier) registerFD(fd uintptr, ops FDEventType) error {
	return errs.IllegalStatef("reactor: unsupported platform")
}
func (unsupportedNotifier) modifyFD(fd uintptr, ops FDEventType) error {
	return errs.IllegalStatef("reactor: unsupported platform")
}
func (unsupportedNotifier) cancelFD(fd uintptr) error {
	return errs.IllegalStatef("reactor: unsupported platform")
}
func (unsupportedNotifier) wait(time.Duration) ([]readyEntry, error) {
	return nil, errs.IllegalStatef("reactor: unsupported platform")
}
func (unsupportedNotifier) wakeup() {}
func (unsupportedNotifier) close() error { return nil }
