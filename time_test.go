package av

import (
	"errors"
	"math"
	"testing"
)

func TestTimeRescaledIdentity(t *testing.T) {
	base := Rational{Num: 1, Den: 90000}
	in := NewTime(123456789, base)
	out, err := in.Rescaled(base)
	if err != nil {
		t.Fatalf("Rescaled: %v", err)
	}
	if out.Ticks() != in.Ticks() || out.TimeBase() != base {
		t.Errorf("identity rescale changed value: %s -> %s", in, out)
	}
}

func TestTimeRescaledInvalidStaysInvalid(t *testing.T) {
	out, err := NoTime().Rescaled(Rational{Num: 1, Den: 1000})
	if err != nil {
		t.Fatalf("Rescaled: %v", err)
	}
	if out.Valid() {
		t.Error("invalid time became valid after rescale")
	}
	if _, err := NoTime().Rescaled(Rational{Num: 1, Den: 0}); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("rescale to invalid base: err = %v, want ErrInvalidTimeBase", err)
	}
}

func TestTimeSeconds(t *testing.T) {
	ts, err := TimeFromFraction(3, 4)
	if err != nil {
		t.Fatalf("TimeFromFraction: %v", err)
	}
	if got := ts.Seconds(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Seconds() = %v, want 0.75", got)
	}
	if _, err := TimeFromFraction(1, 0); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("zero denominator: err = %v, want ErrInvalidTimeBase", err)
	}
}

func TestTimeFromSecondsRounding(t *testing.T) {
	cases := []struct {
		secs  float64
		ticks int64
	}{
		{0, 0},
		{1.0, 1_000_000_000},
		{-1.0, -1_000_000_000},
		{1.5e-9, 2},
		{-1.5e-9, -2},
		{0.25, 250_000_000},
		{-0.25, -250_000_000},
	}
	for _, tc := range cases {
		if got := TimeFromSeconds(tc.secs).Ticks(); got != tc.ticks {
			t.Errorf("TimeFromSeconds(%v) = %d ticks, want %d", tc.secs, got, tc.ticks)
		}
	}
}

func TestAlignedAdd(t *testing.T) {
	position := ZeroTime(Rational{Num: 1, Den: 25})
	interval := NewTime(40, Rational{Num: 1, Den: 1000}) // 40ms = one tick at 1/25

	position = position.AlignedWith(interval).Add()
	if position.Ticks() != 1 {
		t.Errorf("after one step: ticks = %d, want 1", position.Ticks())
	}
	if position.TimeBase() != (Rational{Num: 1, Den: 25}) {
		t.Errorf("time base changed to %s", position.TimeBase())
	}
}

func TestAlignedAddInvalidPropagates(t *testing.T) {
	sum := NewTime(5, Rational{Num: 1, Den: 25}).AlignedWith(NoTime()).Add()
	if sum.Valid() {
		t.Error("adding an invalid time produced a valid result")
	}
}

func TestTimeStepperNoDrift(t *testing.T) {
	// NTSC frame rate: the classic case where float accumulation drifts.
	stepper, err := NewTimeStepper(Rational{Num: 30000, Den: 1001})
	if err != nil {
		t.Fatalf("NewTimeStepper: %v", err)
	}
	var last Time
	for i := 0; i < 30000; i++ {
		last = stepper.Step()
		if last.Ticks() != int64(i) {
			t.Fatalf("step %d: ticks = %d", i, last.Ticks())
		}
	}
	// 30000 frames at 30000/1001 fps is exactly 1001 seconds.
	if got := stepper.Position().Seconds(); math.Abs(got-1001) > 1e-9 {
		t.Errorf("after 30000 frames: %v seconds, want 1001", got)
	}
}

func TestTimeStepperInvalidRate(t *testing.T) {
	if _, err := NewTimeStepper(Rational{Num: 0, Den: 1}); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("zero frame rate: err = %v, want ErrInvalidTimeBase", err)
	}
}
