package sched

import "time"

// GuestSlot is one VCPU's view of the shared-memory guest channel
// described in spec.md §6.
type GuestSlot struct {
	Arg1 int           // arrival notification: 0=none, 1=arrival announced
	Arg2 int           // debug iteration counter; 3 = "report cputime"
	Arg3 time.Duration // guest-provided next absolute deadline
	Arg4 time.Duration // last-published deadline, echoed back to guest
	Arg5 int           // active-RTA indicator
	Arg7 int           // scratch telemetry
}

// GuestChannel emulates the fixed-layout per-VCPU shared memory block a
// real hypervisor would map into guest address space. This CORE has no
// guest address space, so it is just an in-process table addressable by
// VCPU index.
type GuestChannel struct {
	slots map[VCPUKey]*GuestSlot
}

// NewGuestChannel returns an empty channel table.
func NewGuestChannel() *GuestChannel {
	return &GuestChannel{slots: make(map[VCPUKey]*GuestSlot)}
}

// Slot returns the slot for key, creating it on first access.
func (c *GuestChannel) Slot(key VCPUKey) *GuestSlot {
	s, ok := c.slots[key]
	if !ok {
		s = &GuestSlot{}
		c.slots[key] = s
	}
	return s
}
