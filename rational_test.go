package av

import (
	"errors"
	"testing"
)

func TestRationalReduce(t *testing.T) {
	tests := []struct {
		name string
		in   Rational
		want Rational
	}{
		{"already reduced", Rational{Num: 1, Den: 25}, Rational{Num: 1, Den: 25}},
		{"common factor", Rational{Num: 1000, Den: 25000}, Rational{Num: 1, Den: 25}},
		{"ntsc", Rational{Num: 30000, Den: 1001}, Rational{Num: 30000, Den: 1001}},
		{"sign to numerator", Rational{Num: 1, Den: -4}, Rational{Num: -1, Den: 4}},
		{"zero numerator", Rational{Num: 0, Den: 7}, Rational{Num: 0, Den: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Reduce(); got != tt.want {
				t.Errorf("Reduce(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestRationalInvert(t *testing.T) {
	r := Rational{Num: 30000, Den: 1001}
	inv := r.Invert()
	if inv.Num != 1001 || inv.Den != 30000 {
		t.Errorf("Invert() = %s", inv)
	}
}

func TestRescaleRounded(t *testing.T) {
	ms := Rational{Num: 1, Den: 1000}
	clock := Rational{Num: 1, Den: 90000}

	tests := []struct {
		name string
		v    int64
		from Rational
		to   Rational
		want int64
	}{
		{"identity", 1234, clock, clock, 1234},
		{"ms to 90k", 40, ms, clock, 3600},
		{"90k to ms exact", 3600, clock, ms, 40},
		{"round half up", 45, clock, ms, 1},     // 0.5ms rounds away from zero
		{"round half down", -45, clock, ms, -1}, // symmetric for negatives
		{"round below half", 44, clock, ms, 0},
		{"large values", 1 << 40, ms, clock, (1 << 40) * 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RescaleRounded(tt.v, tt.from, tt.to)
			if err != nil {
				t.Fatalf("RescaleRounded: %v", err)
			}
			if got != tt.want {
				t.Errorf("RescaleRounded(%d, %s, %s) = %d, want %d", tt.v, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRescaleRoundedMonotonic(t *testing.T) {
	from := Rational{Num: 1001, Den: 30000}
	to := Rational{Num: 1, Den: 1000}
	prev := int64(-1 << 62)
	for v := int64(-100); v <= 100; v++ {
		got, err := RescaleRounded(v, from, to)
		if err != nil {
			t.Fatalf("RescaleRounded(%d): %v", v, err)
		}
		if got < prev {
			t.Fatalf("rescale not monotonic at %d: %d < %d", v, got, prev)
		}
		prev = got
	}
}

func TestRescaleRoundedInvalidBase(t *testing.T) {
	if _, err := RescaleRounded(1, Rational{Num: 1, Den: 0}, Rational{Num: 1, Den: 1000}); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("zero denominator source: err = %v, want ErrInvalidTimeBase", err)
	}
	if _, err := RescaleRounded(1, Rational{Num: 1, Den: 1000}, Rational{Num: 0, Den: 1000}); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("zero numerator destination: err = %v, want ErrInvalidTimeBase", err)
	}
}
