// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// InEventLoop needs to compare the calling goroutine against the one
// goroutine that owns a loop. Go exposes no public goroutine-local
// storage, so ownership is tracked by parsing the numeric ID out of the
// "goroutine NNN [...]" header that runtime.Stack always emits as the
// first line of a single-goroutine dump.

package executor

import "runtime"

func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
