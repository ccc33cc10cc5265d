package av

// CodecID names a codec by its FFmpeg identifier string, e.g. "h264",
// "hevc", "vp9", "aac". Encoder settings may name a specific implementation
// ("libx264") instead of the generic codec.
type CodecID string

const (
	CodecH264     CodecID = "h264"
	CodecHEVC     CodecID = "hevc"
	CodecVP8      CodecID = "vp8"
	CodecVP9      CodecID = "vp9"
	CodecAV1      CodecID = "av1"
	CodecMPEG4    CodecID = "mpeg4"
	CodecMJPEG    CodecID = "mjpeg"
	CodecFFV1     CodecID = "ffv1"
	CodecRawVideo CodecID = "rawvideo"
	CodecAAC      CodecID = "aac"
	CodecOpus     CodecID = "opus"
	CodecFLAC     CodecID = "flac"
	CodecPCMS16LE CodecID = "pcm_s16le"
)

// MediaType distinguishes video from audio streams.
type MediaType int

const (
	MediaTypeVideo MediaType = iota
	MediaTypeAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// StreamDescriptor carries the codec parameters of one elementary stream
// across the demuxer boundary. Demuxing itself is external; whatever reads
// the container fills this in and hands packets over through a
// PacketSource.
type StreamDescriptor struct {
	Codec    CodecID
	Type     MediaType
	TimeBase Rational

	// Video parameters.
	Width       int
	Height      int
	PixelFormat PixelFormat

	// Audio parameters.
	SampleRate   int
	SampleFormat SampleFormat
	Channels     int

	// ExtraData holds out-of-band codec configuration (e.g. avcC /
	// esds payloads). Empty for self-contained bitstreams such as
	// Annex-B H.264.
	ExtraData []byte
}

// PacketSource supplies compressed packets to a decoding pipeline.
// ReadPacket returns io.EOF when the stream is exhausted; the returned
// packet is owned by the caller, who must Close it.
type PacketSource interface {
	ReadPacket() (*Packet, error)
}

// PacketSink receives compressed packets from an encoding pipeline.
// WriteHeader is called exactly once before the first packet, WriteTrailer
// exactly once after the last. The packet passed to WritePacket is only
// valid for the duration of the call; sinks that retain it must Clone it.
type PacketSink interface {
	WriteHeader(desc StreamDescriptor) error
	WritePacket(pkt *Packet) error
	WriteTrailer() error
}
