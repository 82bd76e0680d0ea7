// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor specializes executor.Base with an OS readiness notifier:
// registration of selectable file descriptors, the readiness dispatch
// algorithm, I/O-vs-task time budgeting, and notifier rebuild under a
// spurious-wakeup storm.
package reactor
