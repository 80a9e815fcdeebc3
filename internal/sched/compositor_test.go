package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newReadyVCPU(id int, pcpu int, period, slice time.Duration, sporadic bool) *Reservation {
	r := NewReservation(VCPUKey{1, id}, period, slice, sporadic)
	r.CPUA = pcpu
	r.CPUB = -1
	r.Normalize()
	return r
}

// Scenario 1-adjacent: a single non-split periodic VCPU's local_slice is
// its share of the interval length L = G - S, cumulative from S.
func TestRecomputeLocalDeadlinesNonSplit(t *testing.T) {
	s := newTestScheduler(t, 2)
	p := s.PCPUs[1]

	r := newReadyVCPU(1, 1, 100*time.Millisecond, 20*time.Millisecond, false)
	p.Inactive = append(p.Inactive, r)

	s.intervalStart = 0
	s.globalDeadline = 100 * time.Millisecond
	s.recomputeLocalDeadlines(p)

	want := scaleDuration(r.SliceNorm, 100*time.Millisecond, r.PeriodNorm) - DispatchOverhead
	assert.Equal(t, want, r.LocalSlice)
	assert.Equal(t, s.intervalStart+r.LocalSlice, r.LocalDeadline)
	assert.Equal(t, r.LocalSlice, r.LocalCPUTime)
	assert.Equal(t, s.globalDeadline, p.ObservedGlobalDeadline)
}

// Local deadlines are cumulative in ready-queue order: the second VCPU's
// window starts where the first's ends.
func TestRecomputeLocalDeadlinesCumulativeAcrossReadyQueue(t *testing.T) {
	s := newTestScheduler(t, 2)
	p := s.PCPUs[1]

	r1 := newReadyVCPU(1, 1, 100*time.Millisecond, 40*time.Millisecond, false)
	r2 := newReadyVCPU(2, 1, 100*time.Millisecond, 60*time.Millisecond, false)
	p.Inactive = append(p.Inactive, r1, r2)

	s.intervalStart = 0
	s.globalDeadline = 100 * time.Millisecond
	s.recomputeLocalDeadlines(p)

	assert.Equal(t, r1.LocalDeadline, r2.LocalDeadline-r2.LocalSlice)
}

// A split VCPU, observed from its cpu_a side, gets a cumulative primary
// window and a _second window ending exactly at G, and is marked
// MIGRATING for handoff.
func TestRecomputeLocalDeadlinesSplitFromCPUA(t *testing.T) {
	s := newTestScheduler(t, 3)
	p := s.PCPUs[1]

	r := newReadyVCPU(1, 1, 100*time.Millisecond, 60*time.Millisecond, false)
	r.Flags.Set(FlagSplit)
	r.CPUA, r.CPUB = 1, 2
	r.PeriodA, r.SliceA = 100000, 40000
	r.PeriodB, r.SliceB = 100000, 20000
	p.Inactive = append(p.Inactive, r)

	s.intervalStart = 0
	s.globalDeadline = 100 * time.Millisecond
	s.recomputeLocalDeadlines(p)

	assert.True(t, r.Flags.Has(FlagMigrating))
	assert.Equal(t, s.globalDeadline, r.LocalDeadlineSecond)
	assert.Equal(t, scaleDuration(r.SliceA, 100*time.Millisecond, r.PeriodA)-DispatchOverhead, r.LocalSlice)
	assert.Equal(t, scaleDuration(r.SliceB, 100*time.Millisecond, r.PeriodB)-DispatchOverhead, r.LocalSliceSecond)
}

// Stale placement fields (e.g. left over from before a reshuffle moved
// this VCPU off this PCPU entirely) are skipped rather than crashing.
func TestRecomputeLocalDeadlinesSkipsStalePlacement(t *testing.T) {
	s := newTestScheduler(t, 3)
	p := s.PCPUs[1]

	stale := newReadyVCPU(1, 1, 100*time.Millisecond, 20*time.Millisecond, false)
	stale.Flags.Set(FlagSplit)
	stale.CPUA, stale.CPUB = 2, 3 // neither side is p
	p.Ready = append(p.Ready, stale)

	s.intervalStart = 0
	s.globalDeadline = 100 * time.Millisecond

	assert.NotPanics(t, func() { s.recomputeLocalDeadlines(p) })
}
