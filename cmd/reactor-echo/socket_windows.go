//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor package has no readiness notifier on Windows (see
// reactor.notifier_other.go), so group.NewGroup in main fails fast before
// any socket here is ever touched. This file exists only so the command
// still compiles on Windows rather than breaking the build outright.

package main

import "syscall"

func readFromSocket(fd uintptr, buf []byte) (int, error) {
	return syscall.Read(syscall.Handle(fd), buf)
}

func writeToSocket(fd uintptr, buf []byte) (int, error) {
	return syscall.Write(syscall.Handle(fd), buf)
}

func closeSocket(fd uintptr) error {
	return syscall.Closesocket(syscall.Handle(fd))
}
