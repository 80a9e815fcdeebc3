package sched

import "time"

// DispatchResult is what a dispatch tick hands back to the driver loop:
// either a VCPU to run for Quantum, or Idle.
type DispatchResult struct {
	Task    VCPUKey
	Idle    bool
	Quantum time.Duration
}

// Dispatch runs one PCPU tick: charges the previously running VCPU,
// harvests migrated-in arrivals, scans the ready queue for exhaustion
// and migration triggers, enters the global barrier if this is PCPU 0
// and the global deadline has been reached, and picks the next VCPU to
// run. Grounded on sc_do_schedule (sched_rtvirt.c:2383-2681) and
// update_queues (sched_rtvirt.c:1663-1910).
func (s *Scheduler) Dispatch(pcpuIndex int) DispatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	p := s.PCPUs[pcpuIndex]

	s.chargeCurrent(p, now)
	p.DrainMigrated()
	s.scanReady(p, now)

	if pcpuIndex == 0 {
		if now >= s.globalDeadline {
			s.runGlobalBarrierLocked(now)
			s.signalPCPULocked()
		}
	} else if p.ObservedGlobalDeadline != s.globalDeadline {
		s.recomputeLocalDeadlines(p)
	}

	result := s.chooseNext(p, pcpuIndex, now)

	if !result.Idle {
		r := s.reservations[result.Task]
		r.SchedStartAbs = now
		r.Flags.Set(FlagRunning)
		r.Flags.Clear(FlagMigrated)
		p.Current = r
	} else {
		p.Current = nil
	}
	p.CurrentSliceExpires = now + result.Quantum

	if s.debugMode == 1 {
		s.recordDebugEntry(pcpuIndex, now, result)
	}

	return result
}

// recordDebugEntry pushes one tuple onto this PCPU's debug ring while
// collection is on, mirroring the d_array entry sc_do_schedule writes
// on every tick (sched_rtvirt.c:1376-1386): domain/vcpu identify what
// ran (zero values for an idle tick), now_delta is time since the last
// global barrier, and allocated is this VCPU's cumulative charged
// cputime (sched_rtvirt.c:2414's allocated_time, tracked here per
// reservation rather than per PCPU).
func (s *Scheduler) recordDebugEntry(pcpuIndex int, now time.Duration, result DispatchResult) {
	if pcpuIndex < 0 || pcpuIndex >= len(s.rings) {
		return
	}
	e := DebugEntry{
		NowDelta: now - s.intervalStart,
		Quantum:  result.Quantum,
	}
	if !result.Idle {
		r := s.reservations[result.Task]
		e.Domain = r.Key.DomainID
		e.VCPU = r.Key.VCPUID
		e.LocalCPUTime = r.LocalCPUTime
		e.Allocated = r.CPUTime
	}
	s.rings[pcpuIndex].Push(e)
}

// chargeCurrent implements spec.md §4.6 step 1: decrement the running
// VCPU's local cputime budget and accumulate real cputime, moving a
// sporadic VCPU whose budget is exhausted to wait.
func (s *Scheduler) chargeCurrent(p *PCPU, now time.Duration) {
	r := p.Current
	if r == nil || s.cpu0Busy {
		return
	}
	elapsed := now - r.SchedStartAbs
	r.LocalCPUTime -= elapsed
	r.CPUTime += elapsed
	r.Flags.Set(FlagAsleep)

	if r.Sporadic && r.LocalCPUTime < 0 {
		if p.RemoveFromReady(r) {
			p.Wait = append(p.Wait, r)
		}
	}
}

// scanReady implements spec.md §4.6 step 3: exhaustion and migration
// triggers across the whole ready queue (not just the head), since a
// split VCPU's other-side handoff can become due independent of whose
// turn it is to run. A periodic (non-sporadic) VCPU's local_deadline is
// cumulative (spec.md §4.5): once now passes it, this VCPU's turn is
// over and it steps aside so the next VCPU in sc-list order (whose
// window begins exactly there) can be picked; it rejoins Ready at the
// next interval's compositor pass rather than needing an explicit Wake.
func (s *Scheduler) scanReady(p *PCPU, now time.Duration) {
	for _, r := range append([]*Reservation(nil), p.Ready...) {
		switch {
		case r.Sporadic && r.LocalCPUTime < 0:
			if p.RemoveFromReady(r) {
				p.Wait = append(p.Wait, r)
			}

		case !r.Sporadic && !r.Flags.Has(FlagSplit) && now >= r.LocalDeadline:
			if p.RemoveFromReady(r) {
				p.Wait = append(p.Wait, r)
			}

		case r.Flags.Has(FlagMigrating) && p.subSliceExhausted(r, now):
			s.migrate(p, r)
		}
	}
}

// subSliceExhausted reports whether this PCPU's half of a split VCPU's
// reservation has run out for the current interval.
func (p *PCPU) subSliceExhausted(r *Reservation, now time.Duration) bool {
	return now >= r.LocalDeadline
}

// migrate moves a split VCPU from p to its other PCPU, pushing it onto
// the target's migrated-in queue and raising the target's signal if it
// looks idle or is itself over its sub-slice. Grounded on spec.md §4.6
// step 3 and the MIGRATING/MIGRATED flag pair in spec.md §3/§9.
func (s *Scheduler) migrate(p *PCPU, r *Reservation) {
	var target *PCPU
	if r.CPUA == p.Index {
		target = s.PCPUs[r.CPUB]
	} else {
		target = s.PCPUs[r.CPUA]
	}

	p.RemoveFromReady(r)

	r.LocalSlice, r.LocalSliceSecond = r.LocalSliceSecond, r.LocalSlice
	r.LocalDeadline, r.LocalDeadlineSecond = r.LocalDeadlineSecond, r.LocalDeadline
	r.LocalCPUTime = r.LocalSlice

	r.Flags.Set(FlagMigrated)
	target.Migrated = append(target.Migrated, r)

	if target.Current == nil || target.subSliceExhausted(target.Current, s.Now()) {
		target.RaiseSignal()
	}
}

// chooseNext implements spec.md §4.6 steps 5-6: pick the head of the
// ready queue if runnable, clamp the quantum to [MinQuantum, G-now], and
// fall back to idle with ExtraQuantum otherwise. PCPU 0 always runs for
// the whole global slice (dom0 owns the entire PCPU).
func (s *Scheduler) chooseNext(p *PCPU, pcpuIndex int, now time.Duration) DispatchResult {
	if len(p.Ready) == 0 {
		return s.idleResult(now)
	}

	r := p.Ready[0]
	if r.Flags.Has(FlagShutdown) {
		p.RemoveFromReady(r)
		return s.chooseNext(p, pcpuIndex, now)
	}

	if pcpuIndex == 0 {
		return DispatchResult{Task: r.Key, Quantum: clampQuantum(s.globalDeadline - now)}
	}

	var quantum time.Duration
	if r.Sporadic {
		quantum = r.LocalSlice
		if r.LocalCPUTime < quantum {
			quantum = r.LocalCPUTime
		}
		if quantum < 0 {
			quantum = 10 * time.Millisecond
		}
	} else {
		quantum = r.LocalDeadline - now
	}
	if quantum+now > s.globalDeadline {
		quantum = s.globalDeadline - now
	}

	return DispatchResult{Task: r.Key, Quantum: clampQuantum(quantum)}
}

func (s *Scheduler) idleResult(now time.Duration) DispatchResult {
	q := ExtraQuantum
	if s.globalDeadline != 0 && now+q > s.globalDeadline {
		q = s.globalDeadline - now
	}
	return DispatchResult{Idle: true, Quantum: clampQuantum(q)}
}

// clampQuantum enforces the 5us forward-progress floor from spec.md §4.6
// step 6.
func clampQuantum(q time.Duration) time.Duration {
	if q < MinQuantum {
		return MinQuantum
	}
	return q
}
