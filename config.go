package foreman

import (
	"runtime"
	"time"
)

// Config holds global configuration for the executor.
var Config config = config{
	workerCount: runtime.NumCPU() - 1,
	stealWait:   100 * time.Millisecond,
}

type config struct {
	workerCount int
	stealWait   time.Duration
}

// SetWorkerCount sets how many worker goroutines execute sendable systems
// alongside the main thread. Zero is valid; the main thread then runs
// everything.
func (c *config) SetWorkerCount(n int) {
	if n < 0 {
		n = 0
	}
	c.workerCount = n
}

// SetStealWait bounds how long an idle executor thread sleeps before
// re-checking the runnable pools. The bound only matters when a notification
// is missed, i.e. on a suspected deadlock; it is not part of normal
// operation.
func (c *config) SetStealWait(d time.Duration) {
	c.stealWait = d
}
