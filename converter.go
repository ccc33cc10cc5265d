package av

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Converter transforms raw frames between pixel formats and dimensions
// using libswscale, caching one native scaling context per distinct
// (source, destination) signature. The converter centralizes every
// pixel-layout assumption: output planes are exactly the strided byte
// buffers a numeric consumer can wrap without copying.
//
// A Converter is not safe for concurrent use. Callers running conversions
// in parallel should create one Converter per worker.
type Converter struct {
	contexts map[swsKey]uintptr
}

type swsKey struct {
	srcW, srcH int
	srcFmt     PixelFormat
	dstW, dstH int
	dstFmt     PixelFormat
}

// NewConverter returns an empty converter. Contexts are created lazily on
// first use of each conversion signature.
func NewConverter() *Converter {
	return &Converter{contexts: make(map[swsKey]uintptr)}
}

// Convert produces a new video frame in the requested pixel format and
// dimensions, scaling if the dimensions differ. The source frame is never
// mutated, and the result carries the source's timestamp and time base
// unchanged. Conversion for a fixed (format, dimension) pair is
// deterministic.
//
// Format pairs libswscale cannot handle fail with ErrUnsupportedConversion.
func (cv *Converter) Convert(src *Frame, dstFormat PixelFormat, dstW, dstH int) (*Frame, error) {
	if src == nil || src.ptr == 0 {
		return nil, fmt.Errorf("convert released frame: %w", ErrInvalidBuffer)
	}
	if src.Width() <= 0 {
		return nil, fmt.Errorf("convert non-video frame: %w", ErrUnsupportedConversion)
	}
	if dstW <= 0 || dstH <= 0 || dstFormat.PlaneCount() == 0 {
		return nil, fmt.Errorf("convert to %dx%d %s: %w", dstW, dstH, dstFormat, ErrUnsupportedConversion)
	}

	key := swsKey{
		srcW: src.Width(), srcH: src.Height(), srcFmt: src.PixelFormat(),
		dstW: dstW, dstH: dstH, dstFmt: dstFormat,
	}
	if key.srcW == key.dstW && key.srcH == key.dstH && key.srcFmt == key.dstFmt {
		// Nothing to transform; hand out a second owner of the same
		// storage. Copy-on-write protects the source from later
		// mutation of the result.
		return src.Clone()
	}

	ctx, ok := cv.contexts[key]
	if !ok {
		ctx = swsGetContext(
			int32(key.srcW), int32(key.srcH), int32(key.srcFmt),
			int32(key.dstW), int32(key.dstH), int32(key.dstFmt),
			swsBilinear, 0, 0, 0,
		)
		if ctx == 0 {
			return nil, fmt.Errorf("%s %dx%d -> %s %dx%d: %w",
				key.srcFmt, key.srcW, key.srcH, key.dstFmt, key.dstW, key.dstH,
				ErrUnsupportedConversion)
		}
		cv.contexts[key] = ctx
	}

	dst, err := NewVideoFrame(dstFormat, dstW, dstH)
	if err != nil {
		return nil, err
	}
	if code := swsScaleFrame(ctx, dst.ptr, src.ptr); code < 0 {
		dst.Close()
		return nil, wrapAVError("sws_scale_frame", code, ErrUnsupportedConversion)
	}
	dst.c().pts = src.c().pts
	dst.timeBase = src.timeBase
	return dst, nil
}

// Close frees every cached native scaling context. The converter may be
// used again afterwards; contexts are recreated on demand.
func (cv *Converter) Close() error {
	for key, ctx := range cv.contexts {
		swsFreeContext(ctx)
		delete(cv.contexts, key)
	}
	return nil
}

// ConvertSamplesInto converts the interleaved samples of an audio frame
// into dstFormat, writing into dst and returning the number of bytes
// written. Supported pairs are the interleaved s16 and flt formats in
// either direction (plus the identity copy); planar sources fail with
// ErrUnsupportedConversion. dst must hold
// Samples() * Channels * BytesPerSample(dstFormat) bytes.
func (cv *Converter) ConvertSamplesInto(src *Frame, dstFormat SampleFormat, dst []byte) (int, error) {
	if src == nil || src.ptr == 0 {
		return 0, fmt.Errorf("convert released frame: %w", ErrInvalidBuffer)
	}
	sf := src.SampleFormat()
	if sf == SampleFormatNone {
		return 0, fmt.Errorf("convert non-audio frame: %w", ErrUnsupportedConversion)
	}
	if sf.IsPlanar() || dstFormat.IsPlanar() {
		return 0, fmt.Errorf("planar sample conversion %s -> %s: %w", sf, dstFormat, ErrUnsupportedConversion)
	}
	data, err := src.Plane(0)
	if err != nil {
		return 0, err
	}

	switch {
	case sf == dstFormat:
		if len(dst) < len(data) {
			return 0, fmt.Errorf("sample buffer %d < %d: %w", len(dst), len(data), ErrInvalidBuffer)
		}
		return copy(dst, data), nil

	case sf == SampleFormatS16 && dstFormat == SampleFormatFLT:
		n := len(data) / 2
		if len(dst) < n*4 {
			return 0, fmt.Errorf("sample buffer %d < %d: %w", len(dst), n*4, ErrInvalidBuffer)
		}
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			v := float32(s) / 32768
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
		}
		return n * 4, nil

	case sf == SampleFormatFLT && dstFormat == SampleFormatS16:
		n := len(data) / 4
		if len(dst) < n*2 {
			return 0, fmt.Errorf("sample buffer %d < %d: %w", len(dst), n*2, ErrInvalidBuffer)
		}
		for i := 0; i < n; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
			s := int32(v * 32767)
			if s > 32767 {
				s = 32767
			} else if s < -32768 {
				s = -32768
			}
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(s)))
		}
		return n * 2, nil

	default:
		return 0, fmt.Errorf("sample conversion %s -> %s: %w", sf, dstFormat, ErrUnsupportedConversion)
	}
}
