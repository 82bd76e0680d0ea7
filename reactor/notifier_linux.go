//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) notifier. Grounded on the teacher's epoll binding
// (epoll_reactor.go / reactor_linux.go: EpollCreate1, EpollCtl,
// EpollWait via golang.org/x/sys/unix), consolidated into the single
// notifier contract the run loop needs and extended with an eventfd
// used purely to interrupt an in-progress EpollWait from a foreign
// goroutine — epoll itself has no native interrupt primitive.

package reactor

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

type epollNotifier struct {
	epfd    int
	wakeFD  int
	maxEvents int
	raw     []unix.EpollEvent
}

func newNotifier() (notifier, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	n := &epollNotifier{epfd: epfd, wakeFD: wakeFD, maxEvents: 128}
	n.raw = make([]unix.EpollEvent, n.maxEvents)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		unix.Close(wakeFD)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl(wake): %w", err)
	}
	return n, nil
}

func toEpollEvents(ops FDEventType) uint32 {
	var e uint32
	if ops&EventRead != 0 || ops&EventAccept != 0 {
		e |= unix.EPOLLIN
	}
	if ops&EventWrite != 0 || ops&EventConnect != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) FDEventType {
	var ops FDEventType
	if e&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ops |= EventRead | EventAccept
	}
	if e&unix.EPOLLOUT != 0 {
		ops |= EventWrite | EventConnect
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ops |= EventError
	}
	return ops
}

func (n *epollNotifier) registerFD(fd uintptr, ops FDEventType) error {
	ev := unix.EpollEvent{Events: toEpollEvents(ops), Fd: int32(fd)}
	return unix.EpollCtl(n.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev)
}

func (n *epollNotifier) modifyFD(fd uintptr, ops FDEventType) error {
	ev := unix.EpollEvent{Events: toEpollEvents(ops), Fd: int32(fd)}
	return unix.EpollCtl(n.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev)
}

func (n *epollNotifier) cancelFD(fd uintptr) error {
	err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (n *epollNotifier) wait(timeout time.Duration) ([]readyEntry, error) {
	ms := -1
	if timeout == 0 {
		ms = 0
	} else if timeout > 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	count, err := unix.EpollWait(n.epfd, n.raw, ms)
	if err != nil {
		if err == unix.EINTR {
			log.Printf("reactorcore/reactor: epoll_wait interrupted by signal")
			return nil, errInterrupted
		}
		return nil, err
	}
	out := make([]readyEntry, 0, count)
	for i := 0; i < count; i++ {
		ev := n.raw[i]
		if int(ev.Fd) == n.wakeFD {
			n.drainWake()
			continue
		}
		out = append(out, readyEntry{fd: uintptr(ev.Fd), ops: fromEpollEvents(ev.Events)})
	}
	return out, nil
}

func (n *epollNotifier) drainWake() {
	var buf [8]byte
	unix.Read(n.wakeFD, buf[:])
}

func (n *epollNotifier) wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	unix.Write(n.wakeFD, buf[:])
}

func (n *epollNotifier) close() error {
	unix.Close(n.wakeFD)
	return unix.Close(n.epfd)
}
