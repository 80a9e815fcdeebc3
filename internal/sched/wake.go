package sched

import "time"

// Wake implements the domctl/hypercall wake operation (spec.md §4.7):
// moves a sleeping VCPU from Wait (or Inactive, if it never ran) onto
// its PCPU's Ready queue and raises that PCPU's signal. For a split
// VCPU, "its PCPU" is always the PCPU the call was invoked against,
// even if the VCPU is mid-migration to its other half; the dispatcher
// that observes FlagMigrating will hand it off on its own at the next
// sub-slice boundary. Grounded on sc_wake (sched_rtvirt.c:2696-2824).
func (s *Scheduler) Wake(key VCPUKey, pcpuIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[key]
	if !ok {
		return ErrUnknownVCPU
	}
	if r.Flags.Has(FlagShutdown) {
		return nil
	}

	now := s.Now()
	p := s.PCPUs[pcpuIndex]
	moved := p.RemoveFromWait(r) || p.RemoveFromInactive(r)
	if !moved {
		for _, other := range s.PCPUs {
			if other == p {
				continue
			}
			if other.RemoveFromWait(r) || other.RemoveFromInactive(r) {
				moved = true
				break
			}
		}
	}

	r.Flags.Clear(FlagAsleep)
	r.Flags.Set(FlagWoken)
	if r.Sporadic {
		if !r.Flags.Has(FlagArrived) {
			s.activateSporadic(r, p, now)
		}
		r.Flags.Set(FlagArrived)
		r.LocalCPUTime = r.LocalSlice
	}

	p.Ready = append(p.Ready, r)
	p.RaiseSignal()
	return nil
}

// activateSporadic gives a sporadic VCPU waking for the first time this
// global interval a local_slice scaled off the remaining interval
// (G - now) rather than the full interval length, per spec.md §4.7: a
// late arrival only gets a share of what's left. Split VCPUs also get
// their _second counterpart recomputed against whichever half of the
// split p is. Caller must hold s.mu.
func (s *Scheduler) activateSporadic(r *Reservation, p *PCPU, now time.Duration) {
	remaining := s.globalDeadline - now
	if remaining < 0 {
		remaining = 0
	}

	if !r.Flags.Has(FlagSplit) {
		r.LocalSlice = scaleDuration(r.SliceNorm, remaining, r.PeriodNorm) - DispatchOverhead
		r.LocalDeadline = s.globalDeadline
		return
	}

	if r.CPUA == p.Index {
		r.LocalSlice = scaleDuration(r.SliceA, remaining, r.PeriodA) - DispatchOverhead
		r.LocalDeadline = now + r.LocalSlice
		r.LocalSliceSecond = scaleDuration(r.SliceB, remaining, r.PeriodB) - DispatchOverhead
		r.LocalDeadlineSecond = s.globalDeadline
	} else {
		r.LocalSlice = scaleDuration(r.SliceB, remaining, r.PeriodB) - DispatchOverhead
		r.LocalDeadline = now + r.LocalSlice
		r.LocalSliceSecond = scaleDuration(r.SliceA, remaining, r.PeriodA) - DispatchOverhead
		r.LocalDeadlineSecond = s.globalDeadline
	}
	r.Flags.Set(FlagMigrating)
}

// Sleep implements the domctl/hypercall sleep (block) operation: removes
// a VCPU from the Ready queue of the PCPU that holds it, sets FlagAsleep
// and clears FlagArrived. The VCPU is not put on any other queue, and a
// VCPU sitting on a Wait, Inactive or Migrated queue is left there.
// Grounded on sc_sleep (sched_rtvirt.c:2826-2960).
func (s *Scheduler) Sleep(key VCPUKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[key]
	if !ok {
		return ErrUnknownVCPU
	}

	for _, p := range s.PCPUs {
		if p.RemoveFromReady(r) {
			break
		}
	}
	r.Flags.Set(FlagAsleep)
	r.Flags.Clear(FlagArrived)
	return nil
}
