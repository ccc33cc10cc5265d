package av

// PixelFormat identifies a video pixel layout. Values match FFmpeg's
// AVPixelFormat so they can cross the native boundary directly.
type PixelFormat int32

const (
	PixelFormatNone    PixelFormat = -1
	PixelFormatYUV420P PixelFormat = 0  // planar YUV 4:2:0 (Y + U + V)
	PixelFormatYUYV422 PixelFormat = 1  // packed YUV 4:2:2
	PixelFormatRGB24   PixelFormat = 2  // packed RGB, 3 bytes per pixel
	PixelFormatBGR24   PixelFormat = 3  // packed BGR, 3 bytes per pixel
	PixelFormatYUV422P PixelFormat = 4  // planar YUV 4:2:2
	PixelFormatYUV444P PixelFormat = 5  // planar YUV 4:4:4
	PixelFormatGray8   PixelFormat = 8  // single luma plane
	PixelFormatNV12    PixelFormat = 23 // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGBA    PixelFormat = 26 // packed RGBA, 4 bytes per pixel
	PixelFormatBGRA    PixelFormat = 28 // packed BGRA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatYUYV422:
		return "yuyv422"
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatBGR24:
		return "bgr24"
	case PixelFormatYUV422P:
		return "yuv422p"
	case PixelFormatYUV444P:
		return "yuv444p"
	case PixelFormatGray8:
		return "gray8"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatBGRA:
		return "bgra"
	default:
		return "unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format, or 0 for
// formats this package has no layout knowledge of.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatYUV420P, PixelFormatYUV422P, PixelFormatYUV444P:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	case PixelFormatYUYV422, PixelFormatRGB24, PixelFormatBGR24,
		PixelFormatRGBA, PixelFormatBGRA, PixelFormatGray8:
		return 1 // packed or single plane
	default:
		return 0
	}
}

// chromaShiftH returns log2 of the vertical chroma subsampling, used to
// size chroma plane views.
func (p PixelFormat) chromaShiftH() int {
	switch p {
	case PixelFormatYUV420P, PixelFormatNV12:
		return 1
	default:
		return 0
	}
}

// planeHeight returns the pixel-row count of plane i for a frame of the
// given height.
func (p PixelFormat) planeHeight(i, height int) int {
	if i == 0 {
		return height
	}
	return (height + (1 << p.chromaShiftH()) - 1) >> p.chromaShiftH()
}

// SampleFormat identifies an audio sample layout. Values match FFmpeg's
// AVSampleFormat.
type SampleFormat int32

const (
	SampleFormatNone SampleFormat = -1
	SampleFormatU8   SampleFormat = 0 // unsigned 8-bit, interleaved
	SampleFormatS16  SampleFormat = 1 // signed 16-bit, interleaved
	SampleFormatS32  SampleFormat = 2 // signed 32-bit, interleaved
	SampleFormatFLT  SampleFormat = 3 // 32-bit float, interleaved
	SampleFormatDBL  SampleFormat = 4 // 64-bit float, interleaved
	SampleFormatU8P  SampleFormat = 5
	SampleFormatS16P SampleFormat = 6
	SampleFormatS32P SampleFormat = 7
	SampleFormatFLTP SampleFormat = 8
	SampleFormatDBLP SampleFormat = 9
)

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatFLT:
		return "flt"
	case SampleFormatDBL:
		return "dbl"
	case SampleFormatU8P:
		return "u8p"
	case SampleFormatS16P:
		return "s16p"
	case SampleFormatS32P:
		return "s32p"
	case SampleFormatFLTP:
		return "fltp"
	case SampleFormatDBLP:
		return "dblp"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the storage size of one sample, or 0 for unknown
// formats.
func (s SampleFormat) BytesPerSample() int {
	switch s {
	case SampleFormatU8, SampleFormatU8P:
		return 1
	case SampleFormatS16, SampleFormatS16P:
		return 2
	case SampleFormatS32, SampleFormatS32P, SampleFormatFLT, SampleFormatFLTP:
		return 4
	case SampleFormatDBL, SampleFormatDBLP:
		return 8
	default:
		return 0
	}
}

// IsPlanar reports whether each channel occupies its own plane.
func (s SampleFormat) IsPlanar() bool {
	return s >= SampleFormatU8P
}
