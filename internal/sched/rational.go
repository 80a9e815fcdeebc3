package sched

import "math/bits"

// GCD computes the greatest common divisor of a and b using a
// subtract-shift Euclid: the larger operand is reduced by the largest
// power-of-two multiple of the smaller that still fits, avoiding
// division. Grounded on sched_rtvirt.c's gcd().
func GCD(a, b uint64) uint64 {
	for a != 0 && b != 0 {
		if a > b {
			c := b
			for a-c >= c {
				c <<= 1
			}
			a -= c
		} else {
			c := a
			for b-c >= c {
				c <<= 1
			}
			b -= c
		}
	}
	return a + b
}

// LCM computes the least common multiple of a and b. Unlike the source
// (which silently overflows on large operands, a documented open
// question in spec.md §9/§4.1), this implementation computes the result
// as a*(b/gcd) and returns ErrOverflow when that product does not fit in
// 64 bits, rather than admitting a VCPU against corrupted utilization
// bookkeeping. LCM of 0 and anything is 0.
func LCM(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	g := GCD(a, b)
	hi, lo := bits.Mul64(a, b/g)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}
