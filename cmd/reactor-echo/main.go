// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// reactor-echo is a cross-platform* echo server wired directly to the
// Group+Loop+Reactor API: accepted TCP connections are registered, one at
// a time, onto the next loop the group's chooser hands back, and every
// read-ready fd is echoed on the loop thread that owns it.
//
// *Cross-platform at the TCP-listener level; the reactor loop itself only
// has a readiness notifier on Linux (see reactor.notifier_other.go), so
// NewGroup fails fast with an I/O error everywhere else.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/reactorcore/config"
	"github.com/momentics/reactorcore/executor"
	"github.com/momentics/reactorcore/group"
	"github.com/momentics/reactorcore/reactor"
)

func main() {
	ln, err := net.Listen("tcp", ":9002")
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("[reactor-echo] listening on :9002")

	knobs := config.NewKnobs()
	snapshot, err := knobs.Freeze()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	probes := config.NewProbes()

	threadFactory := executor.ThreadFactory(executor.DefaultThreadFactory)
	if snapshot.AffinityEnabled {
		threadFactory = group.PinningThreadFactory(threadFactory)
	}

	g, err := group.NewGroup(4, threadFactory, nil, func(idx int, factory executor.ThreadFactory) (group.Member, error) {
		return reactor.NewLoop(idx, snapshot, factory, probes, fmt.Sprintf("loop-%d", idx))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "group error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[reactor-echo] reactor group started with %d loops\n", g.Len())

	go acceptLoop(ln.(*net.TCPListener), g)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("[reactor-echo] shutting down")
	ln.Close()
	term := g.ShutdownGracefully(500*time.Millisecond, 5*time.Second)
	if err := term.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
}

func acceptLoop(ln *net.TCPListener, g *group.Group) {
	for {
		conn, err := ln.AcceptTCP()
		if err != nil {
			fmt.Printf("[reactor-echo] accept stopped: %v\n", err)
			return
		}
		clientAddr := conn.RemoteAddr().String()
		fd := socketFD(conn)
		if fd == 0 {
			fmt.Printf("[reactor-echo] could not extract fd for %s\n", clientAddr)
			conn.Close()
			continue
		}

		loop := g.Next().(*reactor.Loop)
		if _, err := loop.Register(fd, reactor.EventRead, echoTask(fd, clientAddr)); err != nil {
			fmt.Printf("[reactor-echo] register failed for %s: %v\n", clientAddr, err)
			conn.Close()
			continue
		}
		fmt.Printf("[reactor-echo] accepted %s -> fd=%d\n", clientAddr, fd)
	}
}

func echoTask(fd uintptr, clientAddr string) reactor.ReadinessTask {
	buf := make([]byte, 4096)
	return func(ready reactor.FDEventType) error {
		n, err := readFromSocket(fd, buf)
		if err != nil {
			closeSocket(fd)
			return fmt.Errorf("read from %s: %w", clientAddr, err)
		}
		if n == 0 {
			closeSocket(fd)
			return fmt.Errorf("connection closed by %s", clientAddr)
		}
		if _, err := writeToSocket(fd, buf[:n]); err != nil {
			closeSocket(fd)
			return fmt.Errorf("write to %s: %w", clientAddr, err)
		}
		return nil
	}
}

func socketFD(c *net.TCPConn) uintptr {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0
	}
	var fd uintptr
	raw.Control(func(f uintptr) { fd = f })
	return fd
}
