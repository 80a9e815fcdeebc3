package sched

// Flags is the VCPU status bitmask, corresponding to the source's 14-bit
// SC_* mask (sched_rtvirt.c). Named bits only, never raw ints, so state
// transitions read as explicit set/clear pairs at the call site.
type Flags uint16

const (
	FlagInactive Flags = 1 << iota
	FlagRunning
	FlagMigrating
	FlagMigrated
	FlagAsleep
	FlagSplit
	FlagReset
	FlagShutdown
	FlagDefault
	FlagShift
	FlagSporadic
	FlagUpdateDeadl
	FlagArrived
	FlagWoken
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f *Flags) Set(bit Flags)   { *f |= bit }
func (f *Flags) Clear(bit Flags) { *f &^= bit }
