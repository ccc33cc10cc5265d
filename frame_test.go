package av

import (
	"errors"
	"testing"
)

func TestVideoFrameAllocation(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, 64, 48)
	if err != nil {
		t.Fatalf("NewVideoFrame: %v", err)
	}
	defer frame.Close()

	if frame.Width() != 64 || frame.Height() != 48 {
		t.Errorf("dimensions = %dx%d", frame.Width(), frame.Height())
	}
	if frame.PixelFormat() != PixelFormatYUV420P {
		t.Errorf("format = %s", frame.PixelFormat())
	}
	for plane := 0; plane < 3; plane++ {
		buf, err := frame.Plane(plane)
		if err != nil {
			t.Fatalf("Plane(%d): %v", plane, err)
		}
		wantRows := 48
		if plane > 0 {
			wantRows = 24
		}
		if len(buf) != frame.Stride(plane)*wantRows {
			t.Errorf("plane %d: %d bytes, want %d", plane, len(buf), frame.Stride(plane)*wantRows)
		}
	}
	if _, err := frame.Plane(3); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("Plane(3) = %v, want ErrInvalidBuffer", err)
	}
}

func TestVideoFrameInvalidArgs(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	if _, err := NewVideoFrame(PixelFormatYUV420P, 0, 48); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("zero width = %v, want ErrInvalidBuffer", err)
	}
	if _, err := NewVideoFrame(PixelFormat(9999), 64, 48); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("unknown format = %v, want ErrInvalidBuffer", err)
	}
}

func TestFrameCopyOnWriteIsolation(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, 32, 32)
	if err != nil {
		t.Fatalf("NewVideoFrame: %v", err)
	}
	defer frame.Close()

	buf, err := frame.WritablePlane(0)
	if err != nil {
		t.Fatalf("WritablePlane: %v", err)
	}
	for i := range buf {
		buf[i] = 50
	}

	clone, err := frame.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	defer clone.Close()
	if frame.RefCount() != 2 {
		t.Errorf("RefCount() = %d, want 2", frame.RefCount())
	}
	if frame.IsWritable() {
		t.Error("shared frame reports writable")
	}

	// Mutating the clone must trigger a private copy.
	cbuf, err := clone.WritablePlane(0)
	if err != nil {
		t.Fatalf("clone WritablePlane: %v", err)
	}
	cbuf[0] = 200

	obuf, err := frame.Plane(0)
	if err != nil {
		t.Fatalf("Plane: %v", err)
	}
	if obuf[0] != 50 {
		t.Errorf("original pixel = %d after clone mutation, want 50", obuf[0])
	}
	if frame.RefCount() != 1 {
		t.Errorf("original RefCount() after copy-on-write = %d, want 1", frame.RefCount())
	}
}

func TestFrameCloneThenCloseKeepsStorage(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, 32, 32)
	if err != nil {
		t.Fatalf("NewVideoFrame: %v", err)
	}
	buf, err := frame.WritablePlane(0)
	if err != nil {
		t.Fatalf("WritablePlane: %v", err)
	}
	buf[5] = 77

	clone, err := frame.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	defer clone.Close()
	frame.Close()

	cbuf, err := clone.Plane(0)
	if err != nil {
		t.Fatalf("clone Plane: %v", err)
	}
	if cbuf[5] != 77 {
		t.Errorf("clone pixel = %d after original released, want 77", cbuf[5])
	}
	if clone.RefCount() != 1 {
		t.Errorf("clone RefCount() = %d, want 1", clone.RefCount())
	}
}

func TestFramePTS(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, 32, 32)
	if err != nil {
		t.Fatalf("NewVideoFrame: %v", err)
	}
	defer frame.Close()

	if frame.PTS().Valid() {
		t.Error("fresh frame has a valid pts")
	}
	frame.SetTimeBase(Rational{Num: 1, Den: 25})
	if err := frame.SetPTS(NewTime(80, Rational{Num: 1, Den: 1000})); err != nil {
		t.Fatalf("SetPTS: %v", err)
	}
	if got := frame.PTS().Ticks(); got != 2 {
		t.Errorf("pts = %d ticks at 1/25, want 2", got)
	}
}
