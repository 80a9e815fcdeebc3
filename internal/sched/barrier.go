package sched

import "time"

// advanceDeadline moves r's absolute deadline forward by one step of the
// barrier algorithm (spec.md §4.4 steps 2-3): honor a guest RTA override
// if one is pending on the shared channel, else advance by one period,
// then catch up by further whole periods if still not in the future.
// Grounded on sched_rtvirt.c:2024-2218.
func (s *Scheduler) advanceDeadline(r *Reservation, now time.Duration) {
	slot := s.channels.Slot(r.Key)

	switch {
	case slot.Arg1 > 0:
		// Guest announced an RTA arrival with an explicit next deadline.
		r.DeadlineAbs = slot.Arg3
		slot.Arg4 = r.DeadlineAbs
		slot.Arg3 = 0
		slot.Arg1 = 0
		slot.Arg2 = 0
		r.Flags.Clear(FlagUpdateDeadl)

	case r.Flags.Has(FlagUpdateDeadl):
		r.Flags.Clear(FlagUpdateDeadl)

	default:
		if !r.Flags.Has(FlagUpdateDeadl) {
			r.Flags.Set(FlagReset)
		}
		r.DeadlineAbs += r.Period
		slot.Arg4 = r.DeadlineAbs
	}

	iterations := 0
	for r.DeadlineAbs <= now {
		iterations++
		if iterations > maxCatchUpIterations {
			s.Log.Warn().
				Int("domain", r.Key.DomainID).Int("vcpu", r.Key.VCPUID).
				Msg("barrier: catch-up iteration cap hit, forcing deadline past now")
			r.DeadlineAbs = now + r.Period
			break
		}
		s.Log.Info().
			Int("domain", r.Key.DomainID).Int("vcpu", r.Key.VCPUID).
			Dur("behind", now-r.DeadlineAbs).
			Msg("barrier: missed deadline, catching up")
		if r.DeadlineAbs == 0 {
			r.DeadlineAbs = now
		} else {
			r.DeadlineAbs += r.Period
		}
		slot.Arg4 = r.DeadlineAbs
	}
}

// RunGlobalBarrier advances the global deadline to the next VCPU's
// absolute deadline and rebases every PCPU, per spec.md §4.4. It is
// entered by PCPU 0 when now >= G (or G is uninitialized). Safe to call
// concurrently; internally serialized by s.mu.
func (s *Scheduler) RunGlobalBarrier(now time.Duration) {
	s.mu.Lock()
	s.runGlobalBarrierLocked(now)
	s.unlockAndSignal()
}

// runGlobalBarrierLocked is RunGlobalBarrier's body, callable from
// contexts (such as Dispatch) that already hold s.mu. It does not
// release the lock or raise signals; callers must do so via
// unlockAndSignal.
func (s *Scheduler) runGlobalBarrierLocked(now time.Duration) {
	s.cpu0Busy = true

	if s.deadlineQ.Len() == 0 {
		s.Log.Error().Msg("barrier: deadline queue is empty")
		s.intervalStart = s.globalDeadline
		s.globalDeadline = now + time.Second
		return
	}

	var newDeadline time.Duration
	iterations := 0
	for {
		iterations++
		if iterations > maxCatchUpIterations {
			s.Log.Warn().Msg("barrier: deadline-selection iteration cap hit")
			newDeadline = now + MinGlobalInterval
			break
		}

		r := s.deadlineQ.PopMin()
		s.advanceDeadline(r, now)
		s.deadlineQ.Insert(r)

		rMin := s.deadlineQ.PeekMin()
		if rMin.Flags.Has(FlagUpdateDeadl) {
			rMin.Flags.Clear(FlagUpdateDeadl)
			s.deadlineQ.Rekey(rMin)
			rMin = s.deadlineQ.PeekMin()
		}

		gap := rMin.DeadlineAbs - now
		if gap < MinGlobalInterval {
			second := s.deadlineQ.PeekAt(1)
			if second != nil && second.DeadlineAbs-now < MinGlobalInterval {
				continue
			}
			newDeadline = now + MinGlobalInterval
		} else {
			newDeadline = rMin.DeadlineAbs
		}
		break
	}

	if s.reshuffle {
		s.runReshuffle()
	}

	for i := s.Dom0CPUCount; i < len(s.PCPUs); i++ {
		p := s.PCPUs[i]
		p.UsedSlice = 0
		p.UsedPeriod = NormDenominator
	}

	for _, r := range s.scList {
		r.Flags.Clear(FlagWoken)
	}

	s.intervalStart = s.Clock.Now().Sub(s.epoch)
	s.globalDeadline = newDeadline

	for i := s.Dom0CPUCount; i <= s.lastAssignedPCPU && i < len(s.PCPUs); i++ {
		p := s.PCPUs[i]
		reactivatePeriodicWaiters(p)
		s.recomputeLocalDeadlines(p)
	}

	s.cpu0Busy = false
}

// reactivatePeriodicWaiters moves periodic (non-sporadic) VCPUs that
// stepped aside in Wait once their cumulative local_deadline passed
// (dispatch.go's scanReady) back onto Inactive so the compositor gives
// them a fresh window this interval. Sporadic VCPUs are left in Wait;
// they only return via an explicit Wake (spec.md §4.7).
func reactivatePeriodicWaiters(p *PCPU) {
	kept := p.Wait[:0]
	for _, r := range p.Wait {
		if r.Sporadic {
			kept = append(kept, r)
			continue
		}
		p.Inactive = append(p.Inactive, r)
	}
	p.Wait = kept
}

// runReshuffle zeroes packing state on every non-dom0 PCPU and re-runs
// the packer for every VCPU in scList order, applying any pending
// putinfo temp values. Caller must hold s.mu. Grounded on
// sched_rtvirt.c:2310-2356.
func (s *Scheduler) runReshuffle() {
	for i := s.Dom0CPUCount; i < len(s.PCPUs); i++ {
		s.PCPUs[i].HyperSlice = 0
		s.PCPUs[i].HyperPeriod = NormDenominator
	}

	attempts := 0
	for _, r := range s.scList {
		attempts++
		if attempts > maxPackAttempts {
			s.Log.Warn().Msg("barrier: reshuffle pack-attempt cap hit")
			break
		}
		if r.PeriodTemp != 0 {
			r.Period = r.PeriodTemp
			r.Slice = r.SliceTemp
			r.Normalize()
		}
		if err := s.assignPCPU(r); err != nil {
			s.Log.Error().Err(err).
				Int("domain", r.Key.DomainID).Int("vcpu", r.Key.VCPUID).
				Msg("barrier: reshuffle admission failed")
		}
	}
	s.reshuffle = false
}

// unlockAndSignal releases s.mu and raises the scheduling signal on
// every PCPU from Dom0CPUCount to LastAssignedPCPU, per spec.md §4.4
// step 9. (G, S) are already published by the time this runs.
func (s *Scheduler) unlockAndSignal() {
	lo, hi, pcpus := s.Dom0CPUCount, s.lastAssignedPCPU, s.PCPUs
	s.mu.Unlock()
	signalPCPURange(pcpus, lo, hi)
}

// signalPCPULocked raises the scheduling signal on every active PCPU
// without releasing s.mu; used when the barrier ran as part of a
// Dispatch call that still needs the lock for its own bookkeeping.
func (s *Scheduler) signalPCPULocked() {
	signalPCPURange(s.PCPUs, s.Dom0CPUCount, s.lastAssignedPCPU)
}

func signalPCPURange(pcpus []*PCPU, lo, hi int) {
	for i := lo; i <= hi && i < len(pcpus); i++ {
		pcpus[i].RaiseSignal()
	}
}
