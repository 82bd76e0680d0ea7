//go:build linux || darwin

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import "syscall"

func readFromSocket(fd uintptr, buf []byte) (int, error) {
	return syscall.Read(int(fd), buf)
}

func writeToSocket(fd uintptr, buf []byte) (int, error) {
	return syscall.Write(int(fd), buf)
}

func closeSocket(fd uintptr) error {
	return syscall.Close(int(fd))
}
