package sched

import "time"

// VCPUKey identifies a VCPU by its owning domain and local vcpu index.
// This is the weak back-reference spec.md §3 describes: the scheduler
// owns the Reservation, the domain/vcpu pair is just a lookup key.
type VCPUKey struct {
	DomainID int
	VCPUID   int
}

// Reservation is a VCPU's scheduling record: owned exclusively by the
// Scheduler, mutated only while holding its lock (or, for per-PCPU-local
// fields, only by the owning PCPU's dispatcher goroutine).
type Reservation struct {
	Key      VCPUKey
	Sporadic bool

	// Original request, nanoseconds.
	Period time.Duration
	Slice  time.Duration

	// Pending values set by PutInfo, applied on the next reshuffle.
	PeriodTemp time.Duration
	SliceTemp  time.Duration

	// Normalized reservation: PeriodNorm is always NormDenominator once
	// activated; SliceNorm = NormDenominator*Slice/Period.
	PeriodNorm int64
	SliceNorm  int64

	// Placement.
	CPUA int
	CPUB int // valid only when Flags.Has(FlagSplit)

	// Split shares, normalized with denominator PeriodA/PeriodB
	// respectively (PeriodA == PeriodB == the H computed at split time).
	PeriodA, SliceA int64
	PeriodB, SliceB int64

	DeadlineAbs time.Duration

	LocalSlice    time.Duration
	LocalDeadline time.Duration

	LocalSliceSecond    time.Duration
	LocalDeadlineSecond time.Duration

	CPUTime      time.Duration
	LocalCPUTime time.Duration

	SchedStartAbs time.Duration

	Flags Flags

	// inSCList marks membership in the scheduler's reshuffle candidate
	// set without needing a separate container lookup.
	inSCList bool
}

// NewReservation builds a reservation for a fresh VCPU, not yet placed.
func NewReservation(key VCPUKey, period, slice time.Duration, sporadic bool) *Reservation {
	return &Reservation{
		Key:      key,
		Sporadic: sporadic,
		Period:   period,
		Slice:    slice,
		Flags:    FlagInactive | FlagDefault,
	}
}

// Normalize recomputes PeriodNorm/SliceNorm from Period/Slice, rescaling
// to NormDenominator as spec.md §3 defines.
func (r *Reservation) Normalize() {
	r.PeriodNorm = NormDenominator
	r.SliceNorm = int64(NormDenominator) * int64(r.Slice) / int64(r.Period)
}
