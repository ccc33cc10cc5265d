package av

import (
	"fmt"
	"math"
)

// Time is an instant or duration expressed as a tick count against a
// rational time base. It is immutable; operations return new values.
//
// A Time can be invalid (no value), mirroring FFmpeg's AV_NOPTS_VALUE.
// Invalid Times propagate through arithmetic without becoming accidental
// zeros.
type Time struct {
	ticks int64
	valid bool
	base  Rational
}

// NewTime returns ticks counted in the given base.
func NewTime(ticks int64, base Rational) Time {
	return Time{ticks: ticks, valid: true, base: base}
}

// NoTime returns the invalid Time.
func NoTime() Time {
	return Time{}
}

// ZeroTime returns t=0 in the given base.
func ZeroTime(base Rational) Time {
	return NewTime(0, base)
}

// TimeFromFraction returns a Time of num/den seconds, stored exactly as num
// ticks of the 1/den base. It fails with ErrInvalidTimeBase if den <= 0.
func TimeFromFraction(num int64, den int32) (Time, error) {
	if den <= 0 {
		return NoTime(), fmt.Errorf("time %d/%d seconds: %w", num, den, ErrInvalidTimeBase)
	}
	return NewTime(num, Rational{Num: 1, Den: den}), nil
}

// TimeFromSeconds returns the given wall-clock duration in a nanosecond
// base. Sub-nanosecond precision is rounded half away from zero.
func TimeFromSeconds(secs float64) Time {
	const nano = 1_000_000_000
	return NewTime(int64(math.Round(secs*nano)), Rational{Num: 1, Den: nano})
}

// Valid reports whether the Time carries a value.
func (t Time) Valid() bool { return t.valid }

// Ticks returns the raw tick count. Only meaningful together with
// TimeBase, and only when Valid.
func (t Time) Ticks() int64 { return t.ticks }

// TimeBase returns the base the ticks are counted in.
func (t Time) TimeBase() Rational { return t.base }

// Seconds returns the Time as floating-point seconds, or 0 when invalid.
func (t Time) Seconds() float64 {
	if !t.valid {
		return 0
	}
	return float64(t.ticks) * t.base.Float()
}

func (t Time) String() string {
	if !t.valid {
		return "none"
	}
	return fmt.Sprintf("%d@%s", t.ticks, t.base)
}

// Rescaled returns the nearest-tick equivalent Time in the destination
// base, rounding half away from zero. Rescaling is monotonic and is the
// identity when the bases are equal.
func (t Time) Rescaled(to Rational) (Time, error) {
	if !t.valid {
		if !to.IsValid() {
			return NoTime(), fmt.Errorf("rescale to %s: %w", to, ErrInvalidTimeBase)
		}
		return Time{base: to}, nil
	}
	ticks, err := RescaleRounded(t.ticks, t.base, to)
	if err != nil {
		return NoTime(), err
	}
	return NewTime(ticks, to), nil
}

// Aligned is a pair of Times brought into a common time base, ready to be
// combined.
type Aligned struct {
	a, b Time
}

// AlignedWith rescales o into t's time base and returns the pair. Used to
// advance a running position by a fixed frame interval:
//
//	position = position.AlignedWith(interval).Add()
func (t Time) AlignedWith(o Time) Aligned {
	r, err := o.Rescaled(t.base)
	if err != nil {
		r = NoTime()
	}
	return Aligned{a: t, b: r}
}

// Add sums the aligned pair. The result is invalid if either side is.
func (al Aligned) Add() Time {
	if !al.a.valid || !al.b.valid {
		return Time{base: al.a.base}
	}
	return NewTime(al.a.ticks+al.b.ticks, al.a.base)
}

// TimeStepper produces successive Times one frame interval apart, for
// timestamping synthetically generated frames. Advancing is purely
// additive in the frame-rate base, so positions never accumulate rounding
// drift.
type TimeStepper struct {
	position Time
	interval Time
}

// NewTimeStepper returns a stepper for the given frame rate, starting at
// zero. It fails with ErrInvalidTimeBase for non-positive rates.
func NewTimeStepper(frameRate Rational) (*TimeStepper, error) {
	if !frameRate.IsValid() || frameRate.Num <= 0 {
		return nil, fmt.Errorf("frame rate %s: %w", frameRate, ErrInvalidTimeBase)
	}
	base := frameRate.Invert().Reduce()
	return &TimeStepper{
		position: ZeroTime(base),
		interval: NewTime(1, base),
	}, nil
}

// Position returns the current position without advancing.
func (s *TimeStepper) Position() Time {
	return s.position
}

// Step returns the current position and advances by one frame interval.
func (s *TimeStepper) Step() Time {
	t := s.position
	s.position = s.position.AlignedWith(s.interval).Add()
	return t
}
