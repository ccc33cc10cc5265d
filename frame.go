package av

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Frame wraps one native raw-media buffer (AVFrame): pixel planes for
// video, sample planes for audio. Frames follow FFmpeg's copy-on-write
// discipline: Clone shares the backing storage and bumps the reference
// count; requesting write access while the storage is shared copies it
// first, so other owners never observe mutation.
//
// A Frame is not safe for concurrent use, but may be handed off between
// goroutines; the native reference counting is atomic.
type Frame struct {
	ptr      uintptr // *AVFrame, 0 after Close
	timeBase Rational
}

func (f *Frame) c() *avFrameC {
	return (*avFrameC)(unsafe.Pointer(f.ptr))
}

// NewVideoFrame allocates a frame with reference-counted plane storage for
// the given format and dimensions.
func NewVideoFrame(format PixelFormat, width, height int) (*Frame, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if format.PlaneCount() == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("video frame %dx%d %s: %w", width, height, format, ErrInvalidBuffer)
	}
	ptr := avFrameAlloc()
	if ptr == 0 {
		return nil, fmt.Errorf("av_frame_alloc: %w", ErrOutOfMemory)
	}
	c := (*avFrameC)(unsafe.Pointer(ptr))
	c.width = int32(width)
	c.height = int32(height)
	c.format = int32(format)
	if code := avFrameGetBuffer(ptr, 0); code < 0 {
		avFrameFree(uintptr(unsafe.Pointer(&ptr)))
		return nil, wrapAVError("av_frame_get_buffer", code, ErrOutOfMemory)
	}
	return newFrameOwned(ptr, Rational{Num: 1, Den: 90000}), nil
}

// newFrameOwned adopts a native frame the caller already owns one
// reference to.
func newFrameOwned(ptr uintptr, timeBase Rational) *Frame {
	f := &Frame{ptr: ptr, timeBase: timeBase}
	runtime.SetFinalizer(f, (*Frame).finalize)
	return f
}

func (f *Frame) finalize() {
	if f.ptr != 0 {
		avFrameFree(uintptr(unsafe.Pointer(&f.ptr)))
	}
}

// Close releases this owner's reference. The plane storage is freed when
// the last owner releases. Close is idempotent; using the frame afterwards
// fails with ErrInvalidBuffer.
func (f *Frame) Close() error {
	if f.ptr != 0 {
		avFrameFree(uintptr(unsafe.Pointer(&f.ptr)))
		f.ptr = 0
		runtime.SetFinalizer(f, nil)
	}
	return nil
}

// Clone returns a second independent owner sharing the same plane storage.
// No pixel data is copied until one owner requests write access.
func (f *Frame) Clone() (*Frame, error) {
	if f.ptr == 0 {
		return nil, fmt.Errorf("clone of released frame: %w", ErrInvalidBuffer)
	}
	ptr := avFrameClone(f.ptr)
	if ptr == 0 {
		return nil, fmt.Errorf("av_frame_clone: %w", ErrOutOfMemory)
	}
	return newFrameOwned(ptr, f.timeBase), nil
}

// RefCount returns the number of owners of the backing storage, or 0 for
// a released or storage-less frame.
func (f *Frame) RefCount() int {
	if f.ptr == 0 || f.c().buf[0] == 0 {
		return 0
	}
	return int(avBufferGetRefCount(f.c().buf[0]))
}

// IsWritable reports whether the storage is exclusively owned and may be
// mutated in place.
func (f *Frame) IsWritable() bool {
	return f.ptr != 0 && avFrameIsWritable(f.ptr) > 0
}

// Width returns the frame width in pixels, 0 for audio frames.
func (f *Frame) Width() int {
	if f.ptr == 0 {
		return 0
	}
	return int(f.c().width)
}

// Height returns the frame height in pixels, 0 for audio frames.
func (f *Frame) Height() int {
	if f.ptr == 0 {
		return 0
	}
	return int(f.c().height)
}

// PixelFormat returns the pixel format of a video frame.
func (f *Frame) PixelFormat() PixelFormat {
	if f.ptr == 0 || f.c().width == 0 {
		return PixelFormatNone
	}
	return PixelFormat(f.c().format)
}

// SampleFormat returns the sample format of an audio frame.
func (f *Frame) SampleFormat() SampleFormat {
	if f.ptr == 0 || f.c().width != 0 {
		return SampleFormatNone
	}
	return SampleFormat(f.c().format)
}

// SampleRate returns the audio sample rate, 0 for video frames.
func (f *Frame) SampleRate() int {
	if f.ptr == 0 {
		return 0
	}
	return int(f.c().sampleRate)
}

// Samples returns the per-channel sample count of an audio frame.
func (f *Frame) Samples() int {
	if f.ptr == 0 {
		return 0
	}
	return int(f.c().nbSamples)
}

// Keyframe reports whether the decoder marked this frame as a keyframe.
func (f *Frame) Keyframe() bool {
	return f.ptr != 0 && f.c().keyFrame != 0
}

// forceKeyframe asks the encoder to code this frame as an I picture.
func (f *Frame) forceKeyframe() {
	if f.ptr != 0 {
		f.c().pictType = avPictureTypeI
	}
}

// TimeBase returns the base the frame timestamp is expressed in.
func (f *Frame) TimeBase() Rational { return f.timeBase }

// SetTimeBase relabels the timestamp base without rescaling the value.
func (f *Frame) SetTimeBase(tb Rational) { f.timeBase = tb }

// PTS returns the presentation timestamp, invalid when unset.
func (f *Frame) PTS() Time {
	if f.ptr == 0 || f.c().pts == avNoPTS {
		return NoTime()
	}
	return NewTime(f.c().pts, f.timeBase)
}

// SetPTS stamps the presentation timestamp, rescaled into the frame's
// time base.
func (f *Frame) SetPTS(t Time) error {
	if f.ptr == 0 {
		return fmt.Errorf("timestamp on released frame: %w", ErrInvalidBuffer)
	}
	if !t.Valid() {
		f.c().pts = avNoPTS
		return nil
	}
	r, err := t.Rescaled(f.timeBase)
	if err != nil {
		return err
	}
	f.c().pts = r.Ticks()
	return nil
}

// Stride returns the line size in bytes of plane i.
func (f *Frame) Stride(i int) int {
	if f.ptr == 0 || i < 0 || i >= len(f.c().linesize) {
		return 0
	}
	return int(f.c().linesize[i])
}

// Plane returns a read-only byte view of plane i. For video the view
// spans Stride(i) bytes per pixel row; for audio it spans the plane
// buffer. The view stays valid until the frame is closed; callers must
// not write through it (use WritablePlane).
func (f *Frame) Plane(i int) ([]byte, error) {
	if f.ptr == 0 {
		return nil, fmt.Errorf("plane of released frame: %w", ErrInvalidBuffer)
	}
	c := f.c()
	length, err := f.planeSize(i)
	if err != nil {
		return nil, err
	}
	if c.data[i] == 0 {
		return nil, fmt.Errorf("plane %d missing: %w", i, ErrInvalidBuffer)
	}
	return byteSlice(c.data[i], length), nil
}

// WritablePlane returns a mutable byte view of plane i. If the storage is
// shared with other owners it is copied first (copy-on-write) and the
// frame rebinds to the private copy before the view is returned.
func (f *Frame) WritablePlane(i int) ([]byte, error) {
	if f.ptr == 0 {
		return nil, fmt.Errorf("write access to released frame: %w", ErrInvalidBuffer)
	}
	if code := avFrameMakeWritable(f.ptr); code < 0 {
		return nil, wrapAVError("av_frame_make_writable", code, ErrOutOfMemory)
	}
	return f.Plane(i)
}

func (f *Frame) planeSize(i int) (int, error) {
	c := f.c()
	if c.width > 0 {
		pf := PixelFormat(c.format)
		n := pf.PlaneCount()
		if n == 0 {
			return 0, fmt.Errorf("pixel format %d has no known plane layout: %w", c.format, ErrInvalidBuffer)
		}
		if i < 0 || i >= n {
			return 0, fmt.Errorf("plane %d of %d-plane frame: %w", i, n, ErrInvalidBuffer)
		}
		stride := int(c.linesize[i])
		if stride <= 0 {
			return 0, fmt.Errorf("plane %d stride %d: %w", i, stride, ErrInvalidBuffer)
		}
		return stride * pf.planeHeight(i, int(c.height)), nil
	}
	// Audio: linesize[0] is the per-plane buffer size.
	sf := SampleFormat(c.format)
	planes := 1
	if sf.IsPlanar() {
		planes = audioPlaneCount(c)
	}
	if i < 0 || i >= planes {
		return 0, fmt.Errorf("plane %d of %d-plane audio frame: %w", i, planes, ErrInvalidBuffer)
	}
	size := int(c.linesize[0])
	if size <= 0 {
		return 0, fmt.Errorf("audio plane size %d: %w", size, ErrInvalidBuffer)
	}
	return size, nil
}

// audioPlaneCount counts the populated data pointers of a planar audio
// frame. Layouts beyond 8 channels use extended_data and are not exposed.
func audioPlaneCount(c *avFrameC) int {
	n := 0
	for _, d := range c.data {
		if d == 0 {
			break
		}
		n++
	}
	return n
}
