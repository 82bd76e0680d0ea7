// Package group implements the executor group of section 4.3: a fixed
// number of single-owner loops sharing one lifecycle, with round-robin
// dispatch and an aggregate termination future.
//
// Grounded on Netty's MultithreadEventExecutorGroup: construct every
// child eagerly, roll back and await every already-created child if any
// later construction fails, install one termination listener per child,
// and complete the aggregate future when the last child reports
// terminated.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package group

import (
	"sync/atomic"
	"time"

	"github.com/momentics/reactorcore/errs"
	"github.com/momentics/reactorcore/executor"
	"github.com/momentics/reactorcore/future"
)

// Member is the subset of executor.Executor a Group dispatches to and
// shuts down. Both executor.SingleThreadExecutor and reactor.Loop satisfy it.
type Member = executor.Executor

// NewChildFunc constructs the idx'th member of a group, given the thread
// factory the group was built with. Implementations typically close over
// a config.Snapshot and *config.Probes to pass to reactor.NewLoop, or
// simply call executor.NewSingleThreadExecutor for a plain group.
type NewChildFunc func(idx int, factory executor.ThreadFactory) (Member, error)

// Group owns N members sharing one lifecycle and one round-robin chooser.
type Group struct {
	members []Member
	chooser Chooser

	terminated      *future.Promise[any]
	terminatedCount atomic.Int32
}

// NewGroup constructs n members via newChild, in order. If any member's
// construction fails, every previously constructed member is shut down
// and awaited before the error is returned — a partially built group is
// never handed back to the caller.
func NewGroup(n int, threadFactory executor.ThreadFactory, chooserFactory ChooserFactory, newChild NewChildFunc) (*Group, error) {
	if n <= 0 {
		return nil, errs.Invalidf("group: thread count must be > 0, got %d", n)
	}
	if chooserFactory == nil {
		chooserFactory = DefaultChooserFactory
	}
	if threadFactory == nil {
		threadFactory = executor.DefaultThreadFactory
	}

	members := make([]Member, 0, n)
	for i := 0; i < n; i++ {
		m, err := newChild(i, threadFactory)
		if err != nil {
			rollback(members)
			return nil, errs.New(errs.KindIllegalState, "group: failed to construct child loop", err)
		}
		members = append(members, m)
	}

	g := &Group{
		members: members,
		chooser: chooserFactory(members),
	}
	g.terminated = future.NewPromise[any](nil)
	for _, m := range members {
		m.Terminated().AddListener(func(future.Future[any]) {
			if int(g.terminatedCount.Add(1)) == len(g.members) {
				g.terminated.TrySuccess(nil)
			}
		})
	}
	return g, nil
}

// rollback shuts down and awaits every already-constructed member,
// swallowing individual errors: this path only runs while propagating a
// construction failure, and a stuck child must not block it forever.
func rollback(members []Member) {
	for _, m := range members {
		m.ShutdownGracefully(0, 5*time.Second)
	}
	for _, m := range members {
		m.Terminated().Await(5 * time.Second)
	}
}

// Next returns the chooser's next member.
func (g *Group) Next() Member { return g.chooser.Next() }

// Len returns the number of members in the group.
func (g *Group) Len() int { return len(g.members) }

// Members returns the group's members in construction order. The slice
// must not be mutated by the caller.
func (g *Group) Members() []Member { return g.members }

// ShutdownGracefully propagates a graceful shutdown request to every
// member with a shared quiet period and timeout, returning the aggregate
// termination future that completes once every member has terminated.
func (g *Group) ShutdownGracefully(quietPeriod, timeout time.Duration) future.Future[any] {
	for _, m := range g.members {
		m.ShutdownGracefully(quietPeriod, timeout)
	}
	return g.terminated
}

// Terminated returns the aggregate termination future.
func (g *Group) Terminated() future.Future[any] { return g.terminated }
