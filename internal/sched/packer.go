package sched

// assignPCPU places r's normalized reservation onto a PCPU (or splits it
// across two adjacent PCPUs), per spec.md §4.2. Grounded on
// dp_wrap_assign_pcpu (sched_rtvirt.c:774-987). Caller must hold s.mu.
func (s *Scheduler) assignPCPU(r *Reservation) error {
	r.Flags.Clear(FlagShift)
	r.Flags.Clear(FlagSplit)
	r.Flags.Clear(FlagMigrated)

	nr := len(s.PCPUs)
	for i := s.Dom0CPUCount; i < nr; i++ {
		p := s.PCPUs[i]

		if p.HyperSlice == p.HyperPeriod {
			continue
		}
		if p.HyperSlice != 0 && p.HyperSlice+NearFullSlack >= p.HyperPeriod {
			// Close a sliver: round up to fully booked and move on.
			p.HyperSlice, p.HyperPeriod = NormDenominator, NormDenominator
			continue
		}

		h, err := LCM(uint64(p.HyperPeriod), uint64(r.PeriodNorm))
		if err != nil {
			return err
		}
		H := int64(h)
		hs := p.HyperSlice * (H / p.HyperPeriod)
		vs := r.SliceNorm * (H / r.PeriodNorm)
		total := hs + vs

		switch {
		case total < H:
			p.HyperSlice, p.HyperPeriod = total, H
			s.place(r, i, p)
			return nil

		case total == H:
			p.HyperSlice, p.HyperPeriod = NormDenominator, NormDenominator
			s.place(r, i, p)
			return nil

		default: // total > H: overflow, try to split onto the next PCPU.
			if i+1 == nr {
				return ErrNoRoom
			}
			hremainder := H - hs
			p.HyperSlice, p.HyperPeriod = NormDenominator, NormDenominator

			r.CPUA = i
			r.PeriodA = H
			r.SliceA = hremainder

			next := s.PCPUs[i+1]
			r.SliceB = vs - hremainder
			r.PeriodB = H
			r.CPUB = i + 1
			r.Flags.Set(FlagSplit)

			next.HyperSlice, next.HyperPeriod = r.SliceB, H

			// The VCPU's home dispatch residency, per the source, is
			// the second (overflow) PCPU: it is the one that drives
			// the handoff at end of interval (spec.md §4.5).
			s.placeSplit(r, i+1, next)
			return nil
		}
	}
	return ErrNoRoom
}

// place assigns r's sole placement to PCPU idx, pushing it onto that
// PCPU's inactive queue and raising its scheduling signal if this is a
// change of PCPU.
func (s *Scheduler) place(r *Reservation, idx int, p *PCPU) {
	moved := r.CPUA != idx
	r.CPUA = idx
	if idx > s.lastAssignedPCPU {
		s.lastAssignedPCPU = idx
	}
	p.Inactive = append(p.Inactive, r)
	if moved {
		p.RaiseSignal()
	}
}

// placeSplit records the home residency (CPUB) of a split VCPU onto the
// secondary PCPU's inactive queue. A split is, by construction, always a
// placement the target PCPU hasn't seen this VCPU on before, so the
// signal is always raised (unlike the non-split place, which only raises
// on an actual change of PCPU).
func (s *Scheduler) placeSplit(r *Reservation, idx int, p *PCPU) {
	if idx > s.lastAssignedPCPU {
		s.lastAssignedPCPU = idx
	}
	p.Inactive = append(p.Inactive, r)
	p.RaiseSignal()
}
