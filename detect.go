package av

// Bitstream inspection helpers for elementary streams. These work on raw
// packet payloads and need no native libraries.

// H.264 NAL unit types (ITU-T H.264 Table 7-1).
const (
	nalTypeSlice = 1
	nalTypeIDR   = 5
	nalTypeSEI   = 6
	nalTypeSPS   = 7
	nalTypePPS   = 8
	nalTypeFUA   = 28
)

// DetectCodec guesses the codec of a raw video bitstream from its first
// bytes. Recognizes H.264 Annex B, VP8 keyframes, VP9 frames and AV1
// OBUs. Returns an empty CodecID when nothing matches.
func DetectCodec(data []byte) CodecID {
	if len(data) < 4 {
		return ""
	}
	if isAnnexBStartCode(data) {
		if isH264NALType(annexBNALType(data)) {
			return CodecH264
		}
		return ""
	}
	if isVP8Keyframe(data) {
		return CodecVP8
	}
	if isAV1OBU(data) {
		return CodecAV1
	}
	if isVP9Frame(data) {
		return CodecVP9
	}
	return ""
}

// isAnnexBStartCode checks for a 3- or 4-byte Annex B start code at the
// head of data.
func isAnnexBStartCode(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return true
	}
	return data[0] == 0 && data[1] == 0 && data[2] == 1
}

// annexBNALType extracts the NAL unit type following the leading start
// code.
func annexBNALType(data []byte) byte {
	offset := 3
	if data[2] == 0 {
		offset = 4
	}
	if len(data) <= offset {
		return 0
	}
	return data[offset] & 0x1F
}

// isH264NALType reports whether t is a NAL unit type H.264 defines.
func isH264NALType(t byte) bool {
	return (t >= 1 && t <= 12) || (t >= 19 && t <= 21)
}

// isVP8Keyframe checks the RFC 6386 keyframe start code after the 3-byte
// frame tag.
func isVP8Keyframe(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if data[0]&0x01 != 0 {
		return false
	}
	return data[3] == 0x9D && data[4] == 0x01 && data[5] == 0x2A
}

// isVP9Frame checks the 2-bit frame marker (0b10) at the top of the
// uncompressed header.
func isVP9Frame(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	return (data[0]>>6)&0x03 == 0x02
}

// isAV1OBU checks for a plausible OBU header: forbidden bit clear and a
// defined OBU type.
func isAV1OBU(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	if (data[0]>>7)&0x01 != 0 {
		return false
	}
	obuType := (data[0] >> 3) & 0x0F
	return (obuType >= 1 && obuType <= 8) || obuType == 15
}

// SplitNALUnits splits an Annex B bitstream into NAL units, start codes
// stripped. The returned slices alias data.
func SplitNALUnits(data []byte) [][]byte {
	var units [][]byte
	start := -1
	for i := 0; i < len(data); i++ {
		if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			if start >= 0 && i > start {
				units = append(units, data[start:i])
			}
			start = i + 4
			i += 3
		} else if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 && i > start {
				units = append(units, data[start:i])
			}
			start = i + 3
			i += 2
		}
	}
	if start >= 0 && start < len(data) {
		units = append(units, data[start:])
	}
	return units
}

// IsH264Keyframe reports whether an Annex B access unit contains an IDR
// slice.
func IsH264Keyframe(data []byte) bool {
	for _, nalu := range SplitNALUnits(data) {
		if len(nalu) > 0 && nalu[0]&0x1F == nalTypeIDR {
			return true
		}
	}
	return false
}
