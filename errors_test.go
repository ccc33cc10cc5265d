package av

import (
	"errors"
	"testing"
)

func TestWrapAVErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int32
		fallback error
		want     error
	}{
		{"enomem", avErrorENOMEM, ErrDecode, ErrOutOfMemory},
		{"invalid data on decode path", avErrorInvalidData, ErrDecode, ErrDecode},
		{"invalid data elsewhere", avErrorInvalidData, ErrEncode, ErrInvalidBuffer},
		{"decoder not found", avErrorDecoderNotFound, ErrInitialization, ErrUnsupportedCodec},
		{"encoder not found", avErrorEncoderNotFound, ErrInitialization, ErrUnsupportedCodec},
		{"fallback", int32(-1234567), ErrEncode, ErrEncode},
		{"nil fallback", int32(-1234567), nil, ErrInitialization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapAVError("op", tt.code, tt.fallback)
			if !errors.Is(err, tt.want) {
				t.Errorf("wrapAVError(%d) = %v, want %v", tt.code, err, tt.want)
			}
		})
	}
}

func TestIsAVAgain(t *testing.T) {
	if !isAVAgain(avErrorEAGAINLinux) || !isAVAgain(avErrorEAGAINDarwin) {
		t.Error("EAGAIN codes not recognized")
	}
	if isAVAgain(avErrorEOF) || isAVAgain(0) {
		t.Error("non-EAGAIN code recognized as EAGAIN")
	}
}

func TestSentinelsDistinct(t *testing.T) {
	sentinels := []error{
		ErrInitialization, ErrUnsupportedCodec, ErrInvalidSettings,
		ErrInvalidTimeBase, ErrInvalidBuffer, ErrOutOfMemory,
		ErrUnsupportedConversion, ErrDecode, ErrEncode, ErrPipelineClosed,
		ErrDrained, ErrExhausted,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
