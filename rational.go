package av

import "fmt"

// Rational is an exact ratio of two integers, used for time bases (seconds
// per tick) and frame rates. It mirrors FFmpeg's AVRational so values can
// cross the native boundary without loss.
type Rational struct {
	Num int32
	Den int32
}

// NewRational returns num/den.
func NewRational(num, den int32) Rational {
	return Rational{Num: num, Den: den}
}

// String formats the rational as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// IsValid reports whether the rational can serve as a time base: the
// denominator must be strictly positive.
func (r Rational) IsValid() bool {
	return r.Den > 0
}

// Float returns the rational as a float64, or 0 for an invalid rational.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Reduce returns the rational with numerator and denominator divided by
// their greatest common divisor, with the sign carried by the numerator.
func (r Rational) Reduce() Rational {
	if r.Num == 0 {
		if r.Den == 0 {
			return r
		}
		return Rational{Num: 0, Den: 1}
	}
	g := gcd64(abs64(int64(r.Num)), abs64(int64(r.Den)))
	num := int64(r.Num) / g
	den := int64(r.Den) / g
	if den < 0 {
		num, den = -num, -den
	}
	return Rational{Num: int32(num), Den: int32(den)}
}

// Equal reports whether the two rationals represent the same ratio.
func (r Rational) Equal(o Rational) bool {
	a, b := r.Reduce(), o.Reduce()
	return a.Num == b.Num && a.Den == b.Den
}

// RescaleRounded converts v from ticks of base from to ticks of base to,
// rounding half away from zero. This is the pure-Go equivalent of FFmpeg's
// av_rescale_q with AV_ROUND_NEAR_INF and, like it, is monotonic: a <= b
// implies RescaleRounded(a) <= RescaleRounded(b). It is exact (identity)
// when the bases are equal.
func RescaleRounded(v int64, from, to Rational) (int64, error) {
	if !from.IsValid() {
		return 0, fmt.Errorf("rescale from %s: %w", from, ErrInvalidTimeBase)
	}
	if !to.IsValid() {
		return 0, fmt.Errorf("rescale to %s: %w", to, ErrInvalidTimeBase)
	}
	if from == to {
		return v, nil
	}
	// v * (from.Num * to.Den) / (from.Den * to.Num), computed without
	// overflowing the intermediate product where possible.
	num := int64(from.Num) * int64(to.Den)
	den := int64(from.Den) * int64(to.Num)
	if den == 0 {
		return 0, fmt.Errorf("rescale to %s: zero-tick destination: %w", to, ErrInvalidTimeBase)
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd64(abs64(num), den)
	num /= g
	den /= g
	return mulDivRound(v, num, den), nil
}

// mulDivRound returns v*num/den rounded half away from zero. den > 0.
func mulDivRound(v, num, den int64) int64 {
	neg := false
	if v < 0 {
		v, neg = -v, true
	}
	if num < 0 {
		num, neg = -num, !neg
	}
	// Split v to keep v*num within 64 bits for the magnitudes time
	// stamps actually take (|v| < 2^63 / num handled directly, larger
	// values via the quotient/remainder split).
	q, r := v/den, v%den
	res := q*num + (r*num+den/2)/den
	if neg {
		res = -res
	}
	return res
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
