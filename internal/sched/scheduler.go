package sched

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxCatchUpIterations = 25
	maxPackAttempts      = 20
)

// Scheduler is the global aggregate: the deadline queue, the (G, S)
// published pair, the reshuffle flag, and the PCPU fleet, all guarded by
// one mutex. This generalizes the teacher's PerfLock (cmd/perflock's
// lock.go: one mutex protecting a shared queue plus channel-based wake)
// from "lock acquisition order" to "VCPU/PCPU scheduling state".
type Scheduler struct {
	mu sync.Mutex

	Config *Config
	Clock  Clock
	Log    zerolog.Logger

	PCPUs        []*PCPU
	Dom0CPUCount int

	reservations map[VCPUKey]*Reservation
	deadlineQ    DeadlineQueue
	scList       []*Reservation

	globalDeadline time.Duration
	intervalStart  time.Duration
	reshuffle      bool
	cpu0Busy       bool

	lastAssignedPCPU int

	epoch    time.Time
	channels *GuestChannel
	rings    []*DebugRing

	debugMode int // 0=idle, 1=collecting
}

// LastAssignedPCPU exposes the packer's high-water mark, read by the
// barrier to know which PCPUs to signal.
func (s *Scheduler) LastAssignedPCPU() int { return s.lastAssignedPCPU }

// G returns the currently published global deadline.
func (s *Scheduler) G() time.Duration { return s.globalDeadline }

// S returns the start instant of the current global interval.
func (s *Scheduler) S() time.Duration { return s.intervalStart }

// NewScheduler builds a Scheduler with numPCPUs PCPUs, the first
// cfg.Dom0CPUCount of which are reserved for dom0 and never touched by
// the packer.
func NewScheduler(cfg *Config, clk Clock, log zerolog.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Scheduler{
		Config:       cfg,
		Clock:        clk,
		Log:          log,
		Dom0CPUCount: cfg.Dom0CPUCount,
		reservations: make(map[VCPUKey]*Reservation),
		epoch:        clk.Now(),
		channels:     NewGuestChannel(),
	}
	for i := 0; i < cfg.NumPCPUs; i++ {
		s.PCPUs = append(s.PCPUs, NewPCPU(i))
		cap := cfg.DebugRingCap
		if cap <= 0 {
			cap = DebugRingCapacity
		}
		s.rings = append(s.rings, NewDebugRing(cap))
	}
	s.lastAssignedPCPU = cfg.Dom0CPUCount
	return s
}

// Now returns elapsed time since the scheduler was created, the Go
// analogue of the source's NOW() macro.
func (s *Scheduler) Now() time.Duration {
	return s.Clock.Now().Sub(s.epoch)
}

// Insert admits a new VCPU: normalizes its reservation, runs the packer,
// and — on success — leaves it on its assigned PCPU's inactive queue.
// Returns ErrAlreadyAdmitted if key is already known, or ErrNoRoom /
// ErrOverflow if the packer could not place it (admission rejected,
// spec.md §4.9).
func (s *Scheduler) Insert(key VCPUKey, period, slice time.Duration, sporadic bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[key]; ok {
		return ErrAlreadyAdmitted
	}
	if err := validatePeriodSlice(period, slice); err != nil {
		return err
	}

	r := NewReservation(key, period, slice, sporadic)
	r.CPUA = -1
	r.CPUB = -1
	if sporadic {
		r.Flags.Set(FlagSporadic)
	}
	r.Normalize()

	if err := s.assignPCPU(r); err != nil {
		return err
	}

	now := s.Clock.Now().Sub(s.epoch)
	r.DeadlineAbs = now + r.Period
	s.deadlineQ.Insert(r)

	s.reservations[key] = r
	if !r.inSCList && key.DomainID != 0 {
		s.scList = append(s.scList, r)
		r.inSCList = true
	}
	return nil
}

// AdmitDefault admits key at the spec's default reservation (spec.md §6)
// without a domctl putinfo call, the Go analogue of sc_alloc_vdata's
// implicit per-VCPU defaults (sched_rtvirt.c:1083-1120): a VCPU exists
// from the moment its domain is created, before that domain ever calls
// putinfo, and still needs a reservation to run under in the meantime.
//
// dom0 bypasses the packer entirely and goes straight onto PCPU 0's
// ready queue, matching Dom0CPUCount's exclusion of PCPU 0 from
// assignPCPU everywhere else in this package: dom0 owns that PCPU
// outright rather than competing for packed bandwidth on it. A non-dom0
// VCPU is admitted like any other reservation, sporadic by default
// (sc_alloc_vdata sets SC_SPORADIC for every non-dom0 VCPU), and carries
// FlagDefault so the first real PutInfo for this key replaces it
// immediately instead of waiting for the next reshuffle.
func (s *Scheduler) AdmitDefault(key VCPUKey, dom0 bool) error {
	if !dom0 {
		if err := s.Insert(key, DefaultPeriodNonDom0, DefaultSliceNonDom0, true); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.reservations[key].Flags.Set(FlagDefault)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[key]; ok {
		return ErrAlreadyAdmitted
	}
	r := NewReservation(key, DefaultPeriodDom0, DefaultSliceDom0, false)
	r.CPUA, r.CPUB = 0, -1
	r.Normalize()
	r.Flags.Set(FlagDefault)

	s.reservations[key] = r
	s.PCPUs[0].Ready = append(s.PCPUs[0].Ready, r)
	return nil
}

// Remove tears a VCPU down: sets FlagShutdown and unlinks it from every
// queue it may be on (spec.md §3 lifecycle).
func (s *Scheduler) Remove(key VCPUKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[key]
	if !ok {
		return ErrUnknownVCPU
	}
	r.Flags.Set(FlagShutdown)

	for _, p := range s.PCPUs {
		p.RemoveFromReady(r)
		p.RemoveFromWait(r)
		p.RemoveFromInactive(r)
		p.Migrated, _ = removeFromSlice(p.Migrated, r)
	}
	s.deadlineQ.Remove(r)
	for i, e := range s.scList {
		if e == r {
			s.scList = append(s.scList[:i], s.scList[i+1:]...)
			break
		}
	}
	delete(s.reservations, key)
	return nil
}

// PutInfo implements the domctl putinfo operation (spec.md §6):
// validates (period, slice), and — unless this is the VCPU's one-time
// default-parameter change — marks it for re-packing on the next
// reshuffle. The special value period == 2*PeriodMax toggles the
// collect/print debug state machine instead of touching any reservation.
func (s *Scheduler) PutInfo(key VCPUKey, period, slice time.Duration) error {
	if period == 2*PeriodMax {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.toggleDebug()
		return nil
	}

	if err := validatePeriodSlice(period, slice); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[key]
	if !ok {
		return ErrUnknownVCPU
	}

	r.PeriodTemp = period
	r.SliceTemp = slice

	if r.Flags.Has(FlagDefault) {
		r.Period = period
		r.Slice = slice
		r.Normalize()
		r.Flags.Clear(FlagDefault)
		return nil
	}

	s.reshuffle = true
	return nil
}

// GetInfo implements the domctl getinfo operation: returns the VCPU's
// currently active (period, slice).
func (s *Scheduler) GetInfo(key VCPUKey) (period, slice time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[key]
	if !ok {
		return 0, 0, ErrUnknownVCPU
	}
	return r.Period, r.Slice, nil
}

// toggleDebug implements the collect/print toggle described in spec.md
// §6 as two states: idle -> collecting -> idle. Leaving collection logs
// "printing" and returns to idle; there is no separate printing state,
// and DumpDebugRing reads the ring in either state.
func (s *Scheduler) toggleDebug() {
	switch {
	case s.debugMode == 0:
		s.debugMode = 1
		s.Log.Info().Msg("debug ring: started collecting")
	case s.debugMode == 1 || s.debugMode == 3:
		s.debugMode = 0
		s.Log.Info().Msg("debug ring: printing")
	}
}

// VCPUSummary is one row of the admin "list" output.
type VCPUSummary struct {
	Key      VCPUKey
	Period   time.Duration
	Slice    time.Duration
	Sporadic bool
	CPUA     int
	CPUB     int
	Split    bool
}

// ListVCPUSummaries returns a snapshot of every admitted VCPU, in
// arbitrary map order.
func (s *Scheduler) ListVCPUSummaries() []VCPUSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VCPUSummary, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, VCPUSummary{
			Key:      r.Key,
			Period:   r.Period,
			Slice:    r.Slice,
			Sporadic: r.Sporadic,
			CPUA:     r.CPUA,
			CPUB:     r.CPUB,
			Split:    r.Flags.Has(FlagSplit),
		})
	}
	return out
}

// ToggleDebug flips the collect/print debug-ring state machine; the
// locked public entry point for toggleDebug.
func (s *Scheduler) ToggleDebug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleDebug()
}

// DumpDebugRing returns the next chunk of buffered debug entries for the
// given PCPU index, or nil if out of range or empty.
func (s *Scheduler) DumpDebugRing(pcpu int) []DebugEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pcpu < 0 || pcpu >= len(s.rings) {
		return nil
	}
	return s.rings[pcpu].Dump()
}

func validatePeriodSlice(period, slice time.Duration) error {
	if period == 0 {
		return ErrInvalidPeriod
	}
	if period > PeriodMax || period < PeriodMin {
		return ErrInvalidPeriod
	}
	if slice > period || slice < SliceMin {
		return ErrInvalidSlice
	}
	return nil
}
