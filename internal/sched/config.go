package sched

import "time"

// Normative constants from spec.md §6.
const (
	PeriodMin = 11 * time.Microsecond
	PeriodMax = 10 * time.Second
	SliceMin  = 5 * time.Microsecond

	// NormDenominator is the period every reservation is rescaled to:
	// slice' = (NormDenominator * slice) / period.
	NormDenominator = 100000

	ExtraQuantum      = 200 * time.Microsecond
	MinQuantum        = 5 * time.Microsecond
	MinGlobalInterval = 250 * time.Microsecond

	// DispatchOverhead is the per-side "safety" subtraction applied to
	// local slice values by the compositor, absorbing dispatch overhead.
	DispatchOverhead = 500 * time.Nanosecond

	// NearFullSlack is the hyper-slice slack below which a PCPU is
	// considered fully booked and rounded up (closes a sliver).
	NearFullSlack = 1000

	// DebugRingCapacity is the default number of entries retained per
	// PCPU in the debug ring.
	DebugRingCapacity = 50000

	// DebugDumpChunk is the max number of debug-ring lines printed per
	// dump request.
	DebugDumpChunk = 250
)

// DefaultPeriodNonDom0 and DefaultSliceNonDom0 are the default reservation
// for a domain that has not yet called putinfo.
var (
	DefaultPeriodNonDom0 = 1 * time.Second
	DefaultSliceNonDom0  = 150 * time.Millisecond

	DefaultPeriodDom0 = 1 * time.Second
	DefaultSliceDom0  = 1 * time.Second
)

// Config holds the operator-overridable knobs for a running scheduler
// instance. Values are loaded from a TOML file (see LoadConfig) and fall
// back to the normative defaults above when absent. PinThreads,
// CatchUpCap, PackCap and DefaultSlice are stored but read by nothing:
// the barrier uses the maxCatchUpIterations/maxPackAttempts constants,
// and dpwrapd pins threads only when given its -pin flag.
type Config struct {
	NumPCPUs     int           `toml:"num_pcpus"`
	Dom0CPUCount int           `toml:"dom0_cpu_count"`
	SocketPath   string        `toml:"socket_path"`
	PinThreads   bool          `toml:"pin_threads"`
	DebugRingCap int           `toml:"debug_ring_capacity"`
	CatchUpCap   int           `toml:"catch_up_iteration_cap"`
	PackCap      int           `toml:"pack_iteration_cap"`
	LogLevel     string        `toml:"log_level"`
	DefaultSlice time.Duration `toml:"-"`
}

// DefaultConfig returns a Config pre-filled with the normative defaults.
func DefaultConfig() *Config {
	return &Config{
		NumPCPUs:     4,
		Dom0CPUCount: 1,
		SocketPath:   "/var/run/dpwrapd.socket",
		PinThreads:   false,
		DebugRingCap: DebugRingCapacity,
		CatchUpCap:   maxCatchUpIterations,
		PackCap:      maxPackAttempts,
		LogLevel:     "info",
	}
}
