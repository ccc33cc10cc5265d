package av

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failing native call maps to exactly one of these
// sentinels; use errors.Is to classify.
var (
	// ErrInitialization indicates a codec context could not be allocated
	// or opened. Fatal to the pipeline instance.
	ErrInitialization = errors.New("initialization failed")

	// ErrUnsupportedCodec indicates no codec with the requested identity
	// is compiled into the loaded FFmpeg build.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrInvalidSettings indicates encoder settings that are internally
	// inconsistent or unsupported by the selected codec.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrInvalidTimeBase indicates a rational time base with a
	// non-positive denominator.
	ErrInvalidTimeBase = errors.New("invalid time base")

	// ErrInvalidBuffer indicates a packet or frame whose metadata does not
	// match its backing buffer, or access through a released wrapper.
	ErrInvalidBuffer = errors.New("invalid buffer")

	// ErrOutOfMemory indicates a native allocation failure. Fatal to the
	// pipeline instance.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrUnsupportedConversion indicates a pixel/sample format pair the
	// converter cannot handle.
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrDecode indicates corrupt packet data. Per-packet and non-fatal:
	// decoding continues with the next packet.
	ErrDecode = errors.New("decode error")

	// ErrEncode indicates an encoding failure. Fatal to the pipeline
	// instance; callers must reopen.
	ErrEncode = errors.New("encode error")

	// ErrPipelineClosed indicates a submit or encode after the pipeline
	// was flushed, finished or closed.
	ErrPipelineClosed = errors.New("pipeline closed")
)

// Protocol sentinels for the feed/drain loop. These are flow control, not
// failures.
var (
	// ErrDrained means no output is buffered right now; feed more input.
	ErrDrained = errors.New("drained: more input required")

	// ErrExhausted means the pipeline was flushed and every buffered
	// element has been delivered. The sequence is finite and over.
	ErrExhausted = errors.New("exhausted: end of stream")
)

// FFmpeg error codes we need to recognize. AVERROR(E*) values are negated
// errno values and therefore platform dependent for EAGAIN; the FFERRTAG
// codes are portable.
const (
	avErrorEOF             = -('E' | 'O'<<8 | 'F'<<16 | ' '<<24)
	avErrorInvalidData     = -('I' | 'N'<<8 | 'D'<<16 | 'A'<<24)
	avErrorDecoderNotFound = -(0xF8 | 'D'<<8 | 'E'<<16 | 'C'<<24)
	avErrorEncoderNotFound = -(0xF8 | 'E'<<8 | 'N'<<16 | 'C'<<24)

	avErrorEAGAINLinux  = -11
	avErrorEAGAINDarwin = -35
	avErrorENOMEM       = -12
	avErrorEINVAL       = -22
)

// isAVAgain reports whether code is AVERROR(EAGAIN) on any supported
// platform. The decoder and encoder drain loops treat it as "try again
// after more input", never as a failure.
func isAVAgain(code int32) bool {
	return code == avErrorEAGAINLinux || code == avErrorEAGAINDarwin
}

// avError is a native failure annotated with the FFmpeg error code and
// classified into the package taxonomy.
type avError struct {
	op       string
	code     int32
	sentinel error
}

func (e *avError) Error() string {
	return fmt.Sprintf("%s: %s (av error %d: %s)", e.op, e.sentinel, e.code, avStrerror(e.code))
}

func (e *avError) Unwrap() error { return e.sentinel }

// wrapAVError maps a negative FFmpeg return code to exactly one taxonomy
// sentinel. fallback classifies codes with no dedicated mapping, so that
// decode-path corruption stays per-packet while encode-path failures stay
// fatal.
func wrapAVError(op string, code int32, fallback error) error {
	sentinel := fallback
	switch {
	case code == avErrorENOMEM:
		sentinel = ErrOutOfMemory
	case code == avErrorInvalidData:
		if fallback != ErrDecode {
			sentinel = ErrInvalidBuffer
		}
	case code == avErrorDecoderNotFound || code == avErrorEncoderNotFound:
		sentinel = ErrUnsupportedCodec
	case code == avErrorEINVAL:
		if fallback == nil {
			sentinel = ErrInvalidBuffer
		}
	}
	if sentinel == nil {
		sentinel = ErrInitialization
	}
	return &avError{op: op, code: code, sentinel: sentinel}
}
