package sched

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant 4 (spec.md §8): after any barrier step completes, G > now and
// S <= now < G.
func TestBarrierPublishesGAfterNowAndSBeforeG(t *testing.T) {
	s := newTestScheduler(t, 2)
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 20*time.Millisecond, false))

	now := s.Now()
	s.RunGlobalBarrier(now)

	assert.Greater(t, s.G(), now)
	assert.LessOrEqual(t, s.S(), now)
	assert.Less(t, s.S(), s.G())
}

// The 250us floor (spec.md §4.4 step 4): when the next deadline is too
// close to now, the barrier publishes now + MinGlobalInterval instead.
func TestBarrierEnforces250MicrosecondFloor(t *testing.T) {
	s := newTestScheduler(t, 2)
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Microsecond, 20*time.Microsecond, false))

	r := s.reservations[VCPUKey{1, 1}]
	now := s.Now()
	r.DeadlineAbs = now + 50*time.Microsecond // closer than the floor
	s.deadlineQ.Rekey(r)

	s.RunGlobalBarrier(now)

	assert.Equal(t, now+MinGlobalInterval, s.G())
}

// Scenario 6 (spec.md §8): a VCPU blocked 65ms past a 20ms-period
// deadline must catch up by integer multiples of the period until
// strictly in the future.
func TestAdvanceDeadlineCatchesUpPastMissedPeriods(t *testing.T) {
	s := newTestScheduler(t, 2)
	r := NewReservation(VCPUKey{1, 1}, 20*time.Millisecond, 5*time.Millisecond, false)
	r.DeadlineAbs = 0

	now := 65 * time.Millisecond
	s.advanceDeadline(r, now)

	assert.Greater(t, r.DeadlineAbs, now)
	// 0 -> +20ms (first advance) -> 65ms is still >= 20ms so catch-up
	// applies multiples of the period until strictly greater than now.
	assert.Equal(t, time.Duration(0), r.DeadlineAbs%r.Period)
}

func TestAdvanceDeadlineHonorsGuestRTAOverride(t *testing.T) {
	s := newTestScheduler(t, 2)
	r := NewReservation(VCPUKey{1, 1}, 20*time.Millisecond, 5*time.Millisecond, false)
	slot := s.channels.Slot(r.Key)
	slot.Arg1 = 1
	slot.Arg3 = 123 * time.Millisecond

	s.advanceDeadline(r, 10*time.Millisecond)

	assert.Equal(t, 123*time.Millisecond, r.DeadlineAbs)
	assert.Equal(t, 0, slot.Arg1)
}

// Reshuffle (spec.md §4.4 step 6): a pending PutInfo change is applied
// and the VCPU is re-packed on the next barrier run.
func TestBarrierReshuffleAppliesPendingPutInfo(t *testing.T) {
	s := newTestScheduler(t, 3)
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 100*time.Millisecond, 20*time.Millisecond, true))

	r := s.reservations[VCPUKey{1, 1}]
	r.Flags.Clear(FlagDefault) // force reshuffle path instead of one-time apply
	require.NoError(t, s.PutInfo(VCPUKey{1, 1}, 100*time.Millisecond, 40*time.Millisecond))
	assert.True(t, s.reshuffle)

	s.RunGlobalBarrier(s.Now())

	assert.False(t, s.reshuffle)
	assert.Equal(t, 40*time.Millisecond, r.Slice)
}

func newMockClockScheduler(t *testing.T, numPCPUs int) (*Scheduler, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.NumPCPUs = numPCPUs
	cfg.Dom0CPUCount = 1
	return NewScheduler(cfg, mock, NewLogger("disabled")), mock
}

func TestBarrierAdvancesClockDrivenInterval(t *testing.T) {
	s, mock := newMockClockScheduler(t, 2)
	require.NoError(t, s.Insert(VCPUKey{1, 1}, 50*time.Millisecond, 10*time.Millisecond, false))

	mock.Add(60 * time.Millisecond)
	s.RunGlobalBarrier(s.Now())

	assert.Greater(t, s.G(), s.Now()-time.Nanosecond)
}
