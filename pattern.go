package av

import (
	"fmt"
	"io"
)

// FrameSource produces raw frames with presentation times, returning
// io.EOF when the source is exhausted. Returned frames are owned by the
// caller.
type FrameSource interface {
	ReadFrame() (*Frame, Time, error)
}

// SolidSource generates a fixed number of frames filled with one YUV
// color, timestamped at a constant frame rate. Useful for encoder tests
// and pipeline smoke checks without a capture device.
type SolidSource struct {
	width, height int
	y, u, v       byte
	remaining     int
	stepper       *TimeStepper
}

// NewSolidSource returns a source of count yuv420p frames of the given
// color.
func NewSolidSource(width, height, count int, frameRate Rational, y, u, v byte) (*SolidSource, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("solid source %dx%d: %w", width, height, ErrInvalidSettings)
	}
	stepper, err := NewTimeStepper(frameRate)
	if err != nil {
		return nil, err
	}
	return &SolidSource{
		width: width, height: height,
		y: y, u: u, v: v,
		remaining: count,
		stepper:   stepper,
	}, nil
}

func (s *SolidSource) ReadFrame() (*Frame, Time, error) {
	if s.remaining <= 0 {
		return nil, NoTime(), io.EOF
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, s.width, s.height)
	if err != nil {
		return nil, NoTime(), err
	}
	for plane, value := range []byte{s.y, s.u, s.v} {
		buf, err := frame.WritablePlane(plane)
		if err != nil {
			frame.Close()
			return nil, NoTime(), err
		}
		for i := range buf {
			buf[i] = value
		}
	}
	s.remaining--
	return frame, s.stepper.Step(), nil
}

// BarsSource generates vertical color bars (75% intensity) in yuv420p,
// cycling the bar layout one position per frame so consecutive frames
// differ and rate control has something to do.
type BarsSource struct {
	width, height int
	remaining     int
	index         int
	stepper       *TimeStepper
}

// Bar colors in YUV, 75% SMPTE order: white, yellow, cyan, green,
// magenta, red, blue.
var barColors = [7][3]byte{
	{180, 128, 128},
	{168, 44, 136},
	{145, 147, 44},
	{133, 63, 52},
	{63, 193, 204},
	{51, 109, 212},
	{28, 212, 120},
}

// NewBarsSource returns a source of count yuv420p color-bar frames.
func NewBarsSource(width, height, count int, frameRate Rational) (*BarsSource, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("bars source %dx%d: %w", width, height, ErrInvalidSettings)
	}
	stepper, err := NewTimeStepper(frameRate)
	if err != nil {
		return nil, err
	}
	return &BarsSource{width: width, height: height, remaining: count, stepper: stepper}, nil
}

func (s *BarsSource) ReadFrame() (*Frame, Time, error) {
	if s.remaining <= 0 {
		return nil, NoTime(), io.EOF
	}
	frame, err := NewVideoFrame(PixelFormatYUV420P, s.width, s.height)
	if err != nil {
		return nil, NoTime(), err
	}
	if err := s.paint(frame); err != nil {
		frame.Close()
		return nil, NoTime(), err
	}
	s.remaining--
	s.index++
	return frame, s.stepper.Step(), nil
}

func (s *BarsSource) paint(frame *Frame) error {
	barWidth := (s.width + len(barColors) - 1) / len(barColors)
	for plane := 0; plane < 3; plane++ {
		buf, err := frame.WritablePlane(plane)
		if err != nil {
			return err
		}
		stride := frame.Stride(plane)
		w, h := s.width, s.height
		bw := barWidth
		if plane > 0 {
			w, h, bw = w/2, h/2, bw/2
			if bw == 0 {
				bw = 1
			}
		}
		for row := 0; row < h; row++ {
			line := buf[row*stride:]
			for col := 0; col < w; col++ {
				bar := (col/bw + s.index) % len(barColors)
				line[col] = barColors[bar][plane]
			}
		}
	}
	return nil
}
