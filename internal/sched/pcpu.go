package sched

import "time"

// PCPU holds one physical CPU's scheduling state. Only the owning
// dispatcher goroutine mutates Ready/Wait/CurrentSliceExpires during
// normal operation; Migrated is written by other PCPUs (or the barrier)
// under the scheduler lock and drained by the owner at its next dispatch.
type PCPU struct {
	Index int

	Ready    []*Reservation
	Wait     []*Reservation
	Inactive []*Reservation
	Migrated []*Reservation

	// Activated utilization packed onto this PCPU, normalized to
	// denominator 100000.
	UsedSlice  int64
	UsedPeriod int64

	// Pre-activation placement utilization, denominator = lcm of
	// constituent periods. HyperPeriod starts at NormDenominator.
	HyperSlice  int64
	HyperPeriod int64

	// ObservedGlobalDeadline is this PCPU's last-seen G; compared against
	// Scheduler.G to decide whether to re-run the local compositor.
	ObservedGlobalDeadline time.Duration

	CurrentSliceExpires time.Duration

	// Current is the VCPU this PCPU is presently running, or nil if idle.
	Current *Reservation

	// Signal is a buffered wake channel, the Go analogue of
	// cpu_raise_softirq: a non-blocking send asks the PCPU's dispatch
	// loop to re-evaluate promptly instead of waiting for its next
	// scheduled tick.
	Signal chan struct{}
}

// NewPCPU returns a PCPU with empty queues and an unbooked hyper-period.
func NewPCPU(index int) *PCPU {
	return &PCPU{
		Index:       index,
		HyperPeriod: NormDenominator,
		Signal:      make(chan struct{}, 1),
	}
}

// RaiseSignal performs the non-blocking "schedule me soon" send.
func (p *PCPU) RaiseSignal() {
	select {
	case p.Signal <- struct{}{}:
	default:
	}
}

// FullyBooked reports whether the PCPU's pre-activation hyper-period
// bookkeeping shows no remaining room.
func (p *PCPU) FullyBooked() bool {
	return p.HyperSlice == p.HyperPeriod
}

// removeFromSlice deletes r from s, preserving order, and reports whether
// it was found.
func removeFromSlice(s []*Reservation, r *Reservation) ([]*Reservation, bool) {
	for i, e := range s {
		if e == r {
			return append(s[:i], s[i+1:]...), true
		}
	}
	return s, false
}

// RemoveFromReady removes r from the Ready queue if present.
func (p *PCPU) RemoveFromReady(r *Reservation) bool {
	s, ok := removeFromSlice(p.Ready, r)
	p.Ready = s
	return ok
}

// RemoveFromWait removes r from the Wait queue if present.
func (p *PCPU) RemoveFromWait(r *Reservation) bool {
	s, ok := removeFromSlice(p.Wait, r)
	p.Wait = s
	return ok
}

// RemoveFromInactive removes r from the Inactive queue if present.
func (p *PCPU) RemoveFromInactive(r *Reservation) bool {
	s, ok := removeFromSlice(p.Inactive, r)
	p.Inactive = s
	return ok
}

// DrainMigrated moves every VCPU waiting in the migrated-in queue into
// Ready, head-first if it is MIGRATING (it should preempt), tail
// otherwise, matching spec.md §4.6 step 2.
func (p *PCPU) DrainMigrated() {
	if len(p.Migrated) == 0 {
		return
	}
	for _, r := range p.Migrated {
		if r.Flags.Has(FlagMigrating) {
			p.Ready = append([]*Reservation{r}, p.Ready...)
		} else {
			p.Ready = append(p.Ready, r)
		}
	}
	p.Migrated = p.Migrated[:0]
}
