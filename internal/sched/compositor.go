package sched

import (
	"sort"
	"time"
)

// scaleDuration computes L*num/den using integer arithmetic, the Go
// analogue of the source's `(x * L) / y` slice-scaling expressions.
func scaleDuration(num int64, L time.Duration, den int64) time.Duration {
	if den == 0 {
		return 0
	}
	return time.Duration(int64(L) * num / den)
}

// compositorRank orders a PCPU's ready set for local-deadline derivation:
// periodic VCPUs first (in insertion order), then sporadic-arrived, then
// sporadic-pending, per spec.md §4.5.
func compositorRank(r *Reservation) int {
	switch {
	case !r.Sporadic:
		return 0
	case r.Flags.Has(FlagArrived):
		return 1
	default:
		return 2
	}
}

// recomputeLocalDeadlines derives each ready VCPU's local slice/deadline
// from the current global interval length L = G - S, per spec.md §4.5.
// Caller must hold s.mu. Any VCPU waiting on p's inactive queue is
// activated into Ready first.
func (s *Scheduler) recomputeLocalDeadlines(p *PCPU) {
	if len(p.Inactive) > 0 {
		p.Ready = append(p.Ready, p.Inactive...)
		p.Inactive = p.Inactive[:0]
	}

	ordered := append([]*Reservation(nil), p.Ready...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return compositorRank(ordered[i]) < compositorRank(ordered[j])
	})
	p.Ready = ordered

	L := s.globalDeadline - s.intervalStart
	prev := s.intervalStart

	for _, r := range ordered {
		switch {
		case !r.Flags.Has(FlagSplit):
			r.LocalSlice = scaleDuration(r.SliceNorm, L, r.PeriodNorm) - DispatchOverhead
			r.LocalDeadline = prev + r.LocalSlice
			prev = r.LocalDeadline

		case r.CPUA == p.Index:
			r.LocalSlice = scaleDuration(r.SliceA, L, r.PeriodA) - DispatchOverhead
			r.LocalDeadline = prev + r.LocalSlice
			prev = r.LocalDeadline

			r.LocalSliceSecond = scaleDuration(r.SliceB, L, r.PeriodB) - DispatchOverhead
			r.LocalDeadlineSecond = s.globalDeadline
			r.Flags.Set(FlagMigrating)

		case r.CPUB == p.Index:
			r.LocalSlice = scaleDuration(r.SliceB, L, r.PeriodB) - DispatchOverhead
			r.LocalDeadline = prev + r.LocalSlice
			prev = r.LocalDeadline

			r.LocalSliceSecond = scaleDuration(r.SliceA, L, r.PeriodA) - DispatchOverhead
			r.LocalDeadlineSecond = s.globalDeadline
			r.Flags.Set(FlagMigrating)

		default:
			// Stale placement fields from before a reshuffle; skip.
			continue
		}
		r.LocalCPUTime = r.LocalSlice
	}

	p.ObservedGlobalDeadline = s.globalDeadline
}
