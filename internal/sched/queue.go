package sched

// DeadlineQueue is the single global ordered sequence of VCPUs keyed by
// DeadlineAbs, ascending, ties broken by insertion order (spec.md §3
// invariant 5). Grounded on sched_rtvirt.c's list_insert_sort/runq_comp —
// the sorted-list variant the source actually wires up; the min-heap
// variant present in the source (MIN_HEAP/heapInsert/extractMin) is dead
// code there (every call site is commented out), so it is not carried
// forward here. n is bounded (<=128 live VCPUs per spec.md §4.3), so a
// sorted slice is used: insert and remove are linear scans (O(n)), peek
// is O(1), and there is none of the bookkeeping of a heap.
type DeadlineQueue struct {
	items []*Reservation
}

// Len reports the number of VCPUs currently queued.
func (q *DeadlineQueue) Len() int { return len(q.items) }

// Insert adds r in sorted position by DeadlineAbs, stable among equal
// deadlines (new entries with an equal key go after existing ones).
func (q *DeadlineQueue) Insert(r *Reservation) {
	i := 0
	for i < len(q.items) && q.items[i].DeadlineAbs <= r.DeadlineAbs {
		i++
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = r
}

// Remove deletes r by identity. Reports whether it was present.
func (q *DeadlineQueue) Remove(r *Reservation) bool {
	for i, e := range q.items {
		if e == r {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Rekey removes and reinserts r, used whenever DeadlineAbs changes.
func (q *DeadlineQueue) Rekey(r *Reservation) {
	q.Remove(r)
	q.Insert(r)
}

// PeekMin returns the minimum-deadline VCPU without removing it, or nil
// if the queue is empty.
func (q *DeadlineQueue) PeekMin() *Reservation {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// PeekAt returns the i-th smallest-deadline VCPU (0 = min), or nil if
// out of range. Used by the barrier to inspect the second-minimum.
func (q *DeadlineQueue) PeekAt(i int) *Reservation {
	if i < 0 || i >= len(q.items) {
		return nil
	}
	return q.items[i]
}

// PopMin removes and returns the minimum-deadline VCPU, or nil if empty.
func (q *DeadlineQueue) PopMin() *Reservation {
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r
}

// IsSorted reports whether the queue is currently ordered ascending by
// DeadlineAbs - used by property tests, not by production code.
func (q *DeadlineQueue) IsSorted() bool {
	for i := 1; i < len(q.items); i++ {
		if q.items[i-1].DeadlineAbs > q.items[i].DeadlineAbs {
			return false
		}
	}
	return true
}
