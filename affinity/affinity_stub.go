//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Fallback for platforms with no pinning support. Pin's contract is
// "never fatal", so this reports failure rather than the caller's loop
// construction failing outright.

package affinity

import "errors"

func pinCurrentThread(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}

func unpinCurrentThread() {}
