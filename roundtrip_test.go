package av

import (
	"testing"
)

// TestLosslessRoundTrip encodes distinct solid frames with the lossless
// preset and asserts the decoded pixels are bit-exact.
func TestLosslessRoundTrip(t *testing.T) {
	const (
		width  = 64
		height = 64
		frames = 5
	)
	rate := Rational{Num: 25, Den: 1}
	sink := NewBufferSink()
	defer sink.Close()
	enc := openTestEncoder(t, sink, PresetH264Lossless(width, height, rate))
	defer enc.Close()

	// One luma level per frame so decode order mistakes are visible.
	levels := []byte{16, 60, 120, 180, 235}
	stepper, err := NewTimeStepper(rate)
	if err != nil {
		t.Fatalf("NewTimeStepper: %v", err)
	}
	for i := 0; i < frames; i++ {
		frame, err := NewVideoFrame(PixelFormatYUV420P, width, height)
		if err != nil {
			t.Fatalf("NewVideoFrame: %v", err)
		}
		for plane, value := range []byte{levels[i], 128, 128} {
			buf, err := frame.WritablePlane(plane)
			if err != nil {
				t.Fatalf("WritablePlane: %v", err)
			}
			for j := range buf {
				buf[j] = value
			}
		}
		err = enc.Encode(frame, stepper.Step())
		frame.Close()
		if err != nil {
			t.Fatalf("Encode frame %d: %v", i, err)
		}
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dec, err := OpenDecoder(sink.Descriptor())
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	i := 0
	for _, frame := range dec.Sequence(sink.Source()) {
		if i >= frames {
			t.Fatalf("decoded more than %d frames", frames)
		}
		buf, err := frame.Plane(0)
		if err != nil {
			t.Fatalf("Plane: %v", err)
		}
		stride := frame.Stride(0)
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				if got := buf[row*stride+col]; got != levels[i] {
					t.Fatalf("frame %d pixel (%d,%d) = %d, want %d", i, col, row, got, levels[i])
				}
			}
		}
		i++
		frame.Close()
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("sequence error: %v", err)
	}
	if i != frames {
		t.Errorf("decoded %d frames, want %d", i, frames)
	}
}
