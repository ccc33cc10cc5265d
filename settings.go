package av

import "fmt"

// Settings selects codec identity and stream layout for an Encoder. The
// value is immutable once passed to NewEncoder; presets return validated
// defaults that can be adjusted before opening.
type Settings struct {
	Codec CodecID // codec or specific implementation name ("libx264")
	Type  MediaType

	// Video layout. Frames submitted to Encode must match exactly; use a
	// Converter first if they do not.
	Width       int
	Height      int
	PixelFormat PixelFormat
	FrameRate   Rational

	// TimeBase for encoder timestamps. Zero value derives a base one
	// thousand times finer than the frame interval.
	TimeBase Rational

	// Rate control: BitRate in bits per second, or Quality as a
	// codec-specific constant-quality target (CRF for x264, -1 = unset).
	BitRate int64
	Quality int

	// GOPSize is the keyframe interval in frames (0 = codec default).
	GOPSize int

	// AllowBFrames permits the codec to emit B frames, which makes
	// output decoding order differ from presentation order.
	AllowBFrames bool

	// Audio layout.
	SampleRate   int
	SampleFormat SampleFormat
	Channels     int
	FrameSamples int // required per-frame sample count, 0 = flexible

	// CodecOptions are passed verbatim to the codec's private options
	// (e.g. x264 "preset", "tune", "crf", "qp").
	CodecOptions map[string]string
}

// DefaultSettings returns video defaults for the given codec and
// dimensions: 25 fps, 1 Mbps, keyframe every 12 frames, no B frames.
func DefaultSettings(codec CodecID, width, height int) Settings {
	return Settings{
		Codec:        codec,
		Type:         MediaTypeVideo,
		Width:        width,
		Height:       height,
		PixelFormat:  PixelFormatYUV420P,
		FrameRate:    Rational{Num: 25, Den: 1},
		BitRate:      1_000_000,
		Quality:      -1,
		GOPSize:      12,
		AllowBFrames: false,
	}
}

// PresetH264YUV420P returns settings for the most widely compatible
// output: H.264 with 8-bit 4:2:0 planar chroma subsampling.
func PresetH264YUV420P(width, height int, frameRate Rational) Settings {
	s := DefaultSettings(CodecH264, width, height)
	s.FrameRate = frameRate
	s.AllowBFrames = true
	s.CodecOptions = map[string]string{
		"preset": "medium",
	}
	return s
}

// PresetH264Realtime returns H.264 settings tuned for zero-latency
// encoding: no B frames, no lookahead, packets emitted one per frame.
func PresetH264Realtime(width, height int, frameRate Rational) Settings {
	s := DefaultSettings(CodecH264, width, height)
	s.FrameRate = frameRate
	s.CodecOptions = map[string]string{
		"preset": "ultrafast",
		"tune":   "zerolatency",
	}
	return s
}

// PresetH264Lossless returns mathematically lossless H.264 settings
// (x264 qp 0), for round-trip tests that assert exact pixel equality.
func PresetH264Lossless(width, height int, frameRate Rational) Settings {
	s := DefaultSettings(CodecH264, width, height)
	s.FrameRate = frameRate
	s.BitRate = 0
	s.CodecOptions = map[string]string{
		"preset": "veryfast",
		"tune":   "zerolatency",
		"qp":     "0",
	}
	return s
}

// Validate checks internal consistency. Codec support for the pixel
// format is checked against the native codec when the encoder opens.
func (s Settings) Validate() error {
	if s.Codec == "" {
		return fmt.Errorf("no codec selected: %w", ErrInvalidSettings)
	}
	switch s.Type {
	case MediaTypeVideo:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("dimensions %dx%d: %w", s.Width, s.Height, ErrInvalidSettings)
		}
		if s.PixelFormat.PlaneCount() == 0 {
			return fmt.Errorf("pixel format %s: %w", s.PixelFormat, ErrInvalidSettings)
		}
		if s.PixelFormat == PixelFormatYUV420P || s.PixelFormat == PixelFormatNV12 {
			if s.Width%2 != 0 || s.Height%2 != 0 {
				return fmt.Errorf("4:2:0 dimensions %dx%d must be even: %w", s.Width, s.Height, ErrInvalidSettings)
			}
		}
		if !s.FrameRate.IsValid() || s.FrameRate.Num <= 0 {
			return fmt.Errorf("frame rate %s: %w", s.FrameRate, ErrInvalidSettings)
		}
	case MediaTypeAudio:
		if s.SampleRate <= 0 {
			return fmt.Errorf("sample rate %d: %w", s.SampleRate, ErrInvalidSettings)
		}
		if s.Channels <= 0 {
			return fmt.Errorf("channel count %d: %w", s.Channels, ErrInvalidSettings)
		}
		if s.SampleFormat.BytesPerSample() == 0 {
			return fmt.Errorf("sample format %s: %w", s.SampleFormat, ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("media type %d: %w", s.Type, ErrInvalidSettings)
	}
	if s.TimeBase != (Rational{}) && !s.TimeBase.IsValid() {
		return fmt.Errorf("time base %s: %w", s.TimeBase, ErrInvalidTimeBase)
	}
	if s.BitRate < 0 {
		return fmt.Errorf("bit rate %d: %w", s.BitRate, ErrInvalidSettings)
	}
	return nil
}

// timeBase returns the configured time base, deriving one from the frame
// rate or sample rate when unset.
func (s Settings) timeBase() Rational {
	if s.TimeBase.IsValid() {
		return s.TimeBase
	}
	if s.Type == MediaTypeAudio {
		return Rational{Num: 1, Den: int32(s.SampleRate)}
	}
	// One thousand ticks per frame interval keeps rescaled source
	// timestamps distinct even for sources finer than the frame rate.
	return Rational{Num: s.FrameRate.Den, Den: s.FrameRate.Num * 1000}.Reduce()
}

// descriptor returns the stream parameters an encoder opened with these
// settings produces.
func (s Settings) descriptor(timeBase Rational) StreamDescriptor {
	return StreamDescriptor{
		Codec:        s.Codec,
		Type:         s.Type,
		TimeBase:     timeBase,
		Width:        s.Width,
		Height:       s.Height,
		PixelFormat:  s.PixelFormat,
		SampleRate:   s.SampleRate,
		SampleFormat: s.SampleFormat,
		Channels:     s.Channels,
	}
}

// encoderCandidates lists native encoder names to try for a codec
// identity, preferring the common external implementations.
func encoderCandidates(codec CodecID) []string {
	switch codec {
	case CodecH264:
		return []string{"libx264", "h264"}
	case CodecHEVC:
		return []string{"libx265", "hevc"}
	case CodecVP8:
		return []string{"libvpx", "vp8"}
	case CodecVP9:
		return []string{"libvpx-vp9", "vp9"}
	case CodecAV1:
		return []string{"libaom-av1", "libsvtav1", "av1"}
	case CodecOpus:
		return []string{"libopus", "opus"}
	default:
		return []string{string(codec)}
	}
}
