package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestReservation(id int, deadline time.Duration) *Reservation {
	r := NewReservation(VCPUKey{DomainID: 1, VCPUID: id}, time.Second, 100*time.Millisecond, false)
	r.DeadlineAbs = deadline
	return r
}

func TestDeadlineQueueOrdering(t *testing.T) {
	var q DeadlineQueue
	a := newTestReservation(1, 30*time.Millisecond)
	b := newTestReservation(2, 10*time.Millisecond)
	c := newTestReservation(3, 20*time.Millisecond)

	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	assert.True(t, q.IsSorted())
	assert.Equal(t, b, q.PeekMin())
	assert.Equal(t, c, q.PeekAt(1))
	assert.Equal(t, a, q.PeekAt(2))
	assert.Nil(t, q.PeekAt(3))
}

func TestDeadlineQueueTieBreakIsInsertionOrder(t *testing.T) {
	var q DeadlineQueue
	first := newTestReservation(1, 10*time.Millisecond)
	second := newTestReservation(2, 10*time.Millisecond)

	q.Insert(first)
	q.Insert(second)

	assert.Same(t, first, q.PeekAt(0))
	assert.Same(t, second, q.PeekAt(1))
}

func TestDeadlineQueueRekey(t *testing.T) {
	var q DeadlineQueue
	a := newTestReservation(1, 10*time.Millisecond)
	b := newTestReservation(2, 20*time.Millisecond)
	q.Insert(a)
	q.Insert(b)

	a.DeadlineAbs = 30 * time.Millisecond
	q.Rekey(a)

	assert.True(t, q.IsSorted())
	assert.Same(t, b, q.PeekMin())
	assert.Same(t, a, q.PeekAt(1))
}

func TestDeadlineQueuePopMin(t *testing.T) {
	var q DeadlineQueue
	assert.Nil(t, q.PopMin())

	a := newTestReservation(1, 10*time.Millisecond)
	q.Insert(a)
	assert.Same(t, a, q.PopMin())
	assert.Equal(t, 0, q.Len())
}

func TestDeadlineQueueRemove(t *testing.T) {
	var q DeadlineQueue
	a := newTestReservation(1, 10*time.Millisecond)
	q.Insert(a)

	assert.True(t, q.Remove(a))
	assert.False(t, q.Remove(a))
	assert.Equal(t, 0, q.Len())
}
