// Package av provides a safe, ownership-correct layer over the FFmpeg codec
// libraries (libavcodec, libavutil, libswscale), loaded at runtime without
// CGO.
//
// Key pieces include:
//   - Packet and Frame wrappers over FFmpeg's reference-counted buffers,
//     with exactly-once release and copy-on-write mutation
//   - Rational time bases and Time values with drift-free rescaling
//   - Decoder and Encoder pipelines implementing the feed/drain protocol,
//     including end-of-stream flush draining
//   - A Converter for pixel-format conversion and scaling via libswscale
//   - Packet sinks (in-memory, elementary stream, RTP) and synthetic
//     frame sources for testing and examples
//
// # Architecture
//
//	Decode: PacketSource -> Decoder -> (Time, Frame) sequence -> Converter
//	Encode: frame source -> Encoder -> PacketSink (buffer, file, RTP)
//
// # Native Libraries
//
// Bindings load libavutil, libavcodec and libswscale from FFmpeg 6.x via
// purego (CGO_ENABLED=0). Call Init once before constructing any pipeline;
// it is idempotent and verifies the library major versions. Set
// AV_FFMPEG_LIB_PATH to the directory containing the libraries to override
// the default search locations.
//
// Demuxing and muxing of container formats is out of scope: packets cross
// the package boundary through the PacketSource and PacketSink interfaces.
//
// # Concurrency
//
// A Decoder or Encoder instance must not be used from more than one
// goroutine at a time. Frames and Packets returned from a pipeline are
// fully owned by the caller and may be moved freely across goroutines;
// the native reference counting is atomic.
package av
