package sched

import "errors"

var (
	// ErrNoRoom means the packer could not find bandwidth for a VCPU on
	// any PCPU in the fleet; the domain cannot be admitted.
	ErrNoRoom = errors.New("sched: no pcpu has room for this reservation")

	// ErrInvalidPeriod means the requested period falls outside
	// [PeriodMin, PeriodMax].
	ErrInvalidPeriod = errors.New("sched: period out of range")

	// ErrInvalidSlice means the requested slice falls outside
	// [SliceMin, period].
	ErrInvalidSlice = errors.New("sched: slice out of range")

	// ErrOverflow means an LCM computation would overflow 64 bits; the
	// open question in spec.md is resolved by failing closed here rather
	// than silently overflowing as the source does.
	ErrOverflow = errors.New("sched: lcm operands would overflow")

	// ErrUnknownVCPU means a VCPU key was not found in the scheduler's
	// reservation table.
	ErrUnknownVCPU = errors.New("sched: unknown vcpu")

	// ErrAlreadyAdmitted means Insert was called twice for the same key.
	ErrAlreadyAdmitted = errors.New("sched: vcpu already admitted")
)
