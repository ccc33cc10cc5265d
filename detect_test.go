package av

import (
	"bytes"
	"testing"
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func TestSplitNALUnits(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1F}
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	idr := []byte{0x65, 0x88, 0x84, 0x00, 0x10}

	units := SplitNALUnits(annexB(sps, pps, idr))
	if len(units) != 3 {
		t.Fatalf("got %d NAL units, want 3", len(units))
	}
	for i, want := range [][]byte{sps, pps, idr} {
		if !bytes.Equal(units[i], want) {
			t.Errorf("unit %d = %x, want %x", i, units[i], want)
		}
	}
}

func TestSplitNALUnitsThreeByteStartCode(t *testing.T) {
	data := []byte{0, 0, 1, 0x41, 0xAA, 0, 0, 1, 0x41, 0xBB}
	units := SplitNALUnits(data)
	if len(units) != 2 {
		t.Fatalf("got %d NAL units, want 2", len(units))
	}
	if units[0][1] != 0xAA || units[1][1] != 0xBB {
		t.Errorf("units = %x", units)
	}
}

func TestSplitNALUnitsNoStartCode(t *testing.T) {
	if units := SplitNALUnits([]byte{0x41, 0xAA, 0xBB}); units != nil {
		t.Errorf("data without start code yielded %d units", len(units))
	}
}

func TestIsH264Keyframe(t *testing.T) {
	idrAU := annexB([]byte{0x67, 0x42}, []byte{0x68, 0xCE}, []byte{0x65, 0x88})
	if !IsH264Keyframe(idrAU) {
		t.Error("IDR access unit not detected as keyframe")
	}
	deltaAU := annexB([]byte{0x41, 0x9A})
	if IsH264Keyframe(deltaAU) {
		t.Error("non-IDR slice detected as keyframe")
	}
}

func TestDetectCodec(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want CodecID
	}{
		{"h264 annexb sps", annexB([]byte{0x67, 0x42, 0x00, 0x1F, 0x8C}), CodecH264},
		{"h264 three byte", []byte{0, 0, 1, 0x65, 0x88, 0x84, 0x00, 0x10, 0x00, 0x00}, CodecH264},
		{"vp8 keyframe", []byte{0x10, 0x00, 0x00, 0x9D, 0x01, 0x2A, 0x80, 0x02, 0xE0, 0x01}, CodecVP8},
		{"av1 sequence header", []byte{0x0A, 0x0B, 0x00, 0x00}, CodecAV1},
		{"vp9 frame", []byte{0x82, 0x49, 0x83, 0x42}, CodecVP9},
		{"too short", []byte{0, 0}, ""},
		{"garbage", []byte{0xFF, 0xFF, 0xFF, 0xFF}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCodec(tt.data); got != tt.want {
				t.Errorf("DetectCodec = %q, want %q", got, tt.want)
			}
		})
	}
}
