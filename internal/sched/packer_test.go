package sched

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, numPCPUs int) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumPCPUs = numPCPUs
	cfg.Dom0CPUCount = 1
	return NewScheduler(cfg, clock.NewMock(), NewLogger("disabled"))
}

// Scenario 2 (spec.md §8): two periodic VCPUs summing to exactly 100% on
// one PCPU must both land on PCPU 1 with hyper_slice == hyper_period and
// no split.
func TestPackerExactFit(t *testing.T) {
	s := newTestScheduler(t, 4)

	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 40*time.Millisecond, false))
	require.NoError(t, s.Insert(VCPUKey{1, 2}, 100*time.Millisecond, 60*time.Millisecond, false))

	r1 := s.reservations[VCPUKey{1, 1}]
	r2 := s.reservations[VCPUKey{1, 2}]

	assert.Equal(t, 1, r1.CPUA)
	assert.Equal(t, 1, r2.CPUA)
	assert.False(t, r1.Flags.Has(FlagSplit))
	assert.False(t, r2.Flags.Has(FlagSplit))

	p := s.PCPUs[1]
	assert.Equal(t, p.HyperPeriod, p.HyperSlice)
}

// Scenario 3: a third VCPU added after scenario 2 cannot fit on PCPU 1
// (fully booked) and must land wholly on PCPU 2.
func TestPackerOverflowSplitOntoNextPCPUWhollyWhenFirstIsFull(t *testing.T) {
	s := newTestScheduler(t, 4)

	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 40*time.Millisecond, false))
	require.NoError(t, s.Insert(VCPUKey{1, 2}, 100*time.Millisecond, 60*time.Millisecond, false))
	require.NoError(t, s.Insert(VCPUKey{1, 3}, 100*time.Millisecond, 30*time.Millisecond, false))

	r3 := s.reservations[VCPUKey{1, 3}]
	assert.Equal(t, int64(30000), r3.SliceNorm)
	// PCPU 1 is fully booked, so the packer must skip straight to PCPU 2.
	assert.Equal(t, 2, r3.CPUA)
}

// Scenario 4: two VCPUs with non-aligned periods (100ms/150ms) overflow
// PCPU 1 and split onto PCPU 2. Every reservation normalizes period' to
// NormDenominator (confirmed against originalsource's period_new
// assignment), so the LCM step here is trivial (both operands are
// already 100000) and the split arithmetic reduces to plain subtraction
// of normalized slices — see DESIGN.md's note on spec.md §8 scenario 4.
func TestPackerNonAlignedSplit(t *testing.T) {
	s := newTestScheduler(t, 4)

	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 60*time.Millisecond, false))
	r1 := s.reservations[VCPUKey{1, 1}]
	assert.Equal(t, 1, r1.CPUA)
	assert.Equal(t, int64(60000), s.PCPUs[1].HyperSlice)
	assert.Equal(t, int64(100000), s.PCPUs[1].HyperPeriod)

	require.NoError(t, s.Insert(VCPUKey{1, 2}, 150*time.Millisecond, 80*time.Millisecond, false))
	r2 := s.reservations[VCPUKey{1, 2}]

	assert.True(t, r2.Flags.Has(FlagSplit))
	assert.Equal(t, 1, r2.CPUA)
	assert.Equal(t, 2, r2.CPUB)
	assert.Equal(t, int64(53333), r2.SliceNorm)
	assert.Equal(t, int64(100000), r2.PeriodA)
	assert.Equal(t, int64(40000), r2.SliceA)
	assert.Equal(t, int64(13333), r2.SliceB)
}

// Invariant 2 (spec.md §8): for every split VCPU, slice_a + slice_b
// equals the normalized slice scaled to H, and cpu_b = cpu_a + 1.
func TestPackerSplitInvariantAdjacentAndSumsToScaledSlice(t *testing.T) {
	s := newTestScheduler(t, 4)
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 60*time.Millisecond, false))
	require.NoError(t, s.Insert(VCPUKey{1, 2}, 150*time.Millisecond, 80*time.Millisecond, false))

	r2 := s.reservations[VCPUKey{1, 2}]
	require.True(t, r2.Flags.Has(FlagSplit))
	assert.Equal(t, r2.CPUA+1, r2.CPUB)

	H := r2.PeriodA
	vs := r2.SliceNorm * (H / r2.PeriodNorm)
	assert.Equal(t, vs, r2.SliceA+r2.SliceB)
}

func TestPackerRejectsWhenNoRoomAnywhere(t *testing.T) {
	s := newTestScheduler(t, 2) // only PCPU 1 is a non-dom0 PCPU
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 100*time.Millisecond, false))
	err := s.Insert(VCPUKey{1, 2}, 100*time.Millisecond, 50*time.Millisecond, false)
	assert.ErrorIs(t, err, ErrNoRoom)
}
