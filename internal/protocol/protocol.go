// Package protocol defines the gob-encoded wire messages exchanged
// between dpwrapctl and dpwrapd over the admin unix socket. Adapted from
// cmd/perflock's PerfLockAction/ActionAcquire pattern, generalized from
// "acquire/list/set-governor" to the DP-Wrap domctl surface (spec.md §6).
package protocol

import (
	"encoding/gob"
	"time"
)

// Request wraps whichever Action the client is sending, the same
// interface-boxing trick PerfLockAction uses so a single gob stream can
// carry any of the action types below.
type Request struct {
	Action interface{}
}

// ActionPutInfo implements the putinfo domctl: admit a VCPU (if unknown)
// or update its (period, slice), or toggle debug collection when
// Period == 2*sched.PeriodMax.
type ActionPutInfo struct {
	DomainID int
	VCPUID   int
	Period   time.Duration
	Slice    time.Duration
	Sporadic bool
}

// ActionPutInfoResponse reports admission/update success.
type ActionPutInfoResponse struct {
	Err string
}

// ActionGetInfo implements the getinfo domctl: read back a VCPU's
// currently active (period, slice).
type ActionGetInfo struct {
	DomainID int
	VCPUID   int
}

// ActionGetInfoResponse carries the result of ActionGetInfo.
type ActionGetInfoResponse struct {
	Period time.Duration
	Slice  time.Duration
	Err    string
}

// ActionList returns a snapshot of every admitted VCPU as VCPUSummary
// rows, the admin-surface analogue of PerfLock's ActionList.
type ActionList struct{}

// VCPUSummary is one row of the admin "list" output.
type VCPUSummary struct {
	DomainID int
	VCPUID   int
	Period   time.Duration
	Slice    time.Duration
	Sporadic bool
	CPUA     int
	CPUB     int
	Split    bool
}

// ActionDebugToggle flips the daemon's collect/print debug-ring state
// machine (spec.md §6).
type ActionDebugToggle struct{}

// ActionDump requests the next chunk of buffered debug-ring entries for
// one PCPU.
type ActionDump struct {
	PCPU int
}

// DumpEntry mirrors sched.DebugEntry over the wire.
type DumpEntry struct {
	Domain       int
	VCPU         int
	NowDelta     time.Duration
	Quantum      time.Duration
	LocalCPUTime time.Duration
	Allocated    time.Duration
}

func init() {
	gob.Register(ActionPutInfo{})
	gob.Register(ActionGetInfo{})
	gob.Register(ActionList{})
	gob.Register(ActionDebugToggle{})
	gob.Register(ActionDump{})
}
