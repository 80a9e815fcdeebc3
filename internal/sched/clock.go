package sched

import "github.com/benbjohnson/clock"

// Clock abstracts time.Now so tests can drive the barrier and dispatcher
// with a clock.Mock instead of wall-clock time. Production callers use
// clock.New(), which wraps the real time package.
type Clock = clock.Clock
