package av

import (
	"fmt"
	"io"
)

// BufferSink collects the encoded stream in memory. It clones every
// packet it retains, so the encoder's packets stay owned by the encoder.
// Useful for tests and for callers that post-process a whole stream.
type BufferSink struct {
	desc          StreamDescriptor
	packets       []*Packet
	headerWritten bool
	trailerDone   bool
}

// NewBufferSink returns an empty in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) WriteHeader(desc StreamDescriptor) error {
	if s.headerWritten {
		return fmt.Errorf("header written twice: %w", ErrInvalidSettings)
	}
	s.desc = desc
	s.headerWritten = true
	return nil
}

func (s *BufferSink) WritePacket(pkt *Packet) error {
	if !s.headerWritten || s.trailerDone {
		return fmt.Errorf("packet outside header/trailer envelope: %w", ErrPipelineClosed)
	}
	clone, err := pkt.Clone()
	if err != nil {
		return err
	}
	s.packets = append(s.packets, clone)
	return nil
}

func (s *BufferSink) WriteTrailer() error {
	s.trailerDone = true
	return nil
}

// Descriptor returns the stream parameters announced by the header.
func (s *BufferSink) Descriptor() StreamDescriptor { return s.desc }

// Packets returns the retained packets in delivery order. The sink keeps
// ownership; call Close when done.
func (s *BufferSink) Packets() []*Packet { return s.packets }

// Finished reports whether the trailer has been written.
func (s *BufferSink) Finished() bool { return s.trailerDone }

// Bytes concatenates every retained payload, which for codecs emitting
// Annex B bitstreams yields a playable elementary stream.
func (s *BufferSink) Bytes() []byte {
	var total int
	for _, pkt := range s.packets {
		total += pkt.Size()
	}
	out := make([]byte, 0, total)
	for _, pkt := range s.packets {
		out = append(out, pkt.Data()...)
	}
	return out
}

// Source returns a PacketSource replaying the retained packets, for
// feeding a decoder from a just-encoded stream.
func (s *BufferSink) Source() PacketSource {
	return &bufferSource{packets: s.packets}
}

type bufferSource struct {
	packets []*Packet
	next    int
}

func (src *bufferSource) ReadPacket() (*Packet, error) {
	if src.next >= len(src.packets) {
		return nil, io.EOF
	}
	pkt, err := src.packets[src.next].Clone()
	if err != nil {
		return nil, err
	}
	src.next++
	return pkt, nil
}

// Close releases every retained packet.
func (s *BufferSink) Close() error {
	for _, pkt := range s.packets {
		pkt.Close()
	}
	s.packets = nil
	return nil
}

// ElementaryStreamSink writes raw packet payloads to an io.Writer, in
// delivery order with no container framing. With the H.264 and HEVC
// software encoders the payloads are Annex B access units, so the output
// file is a playable elementary stream (.h264/.h265).
type ElementaryStreamSink struct {
	w       io.Writer
	desc    StreamDescriptor
	written uint64
}

// NewElementaryStreamSink returns a sink writing to w. The sink does not
// close w; the caller keeps ownership of the writer.
func NewElementaryStreamSink(w io.Writer) *ElementaryStreamSink {
	return &ElementaryStreamSink{w: w}
}

func (s *ElementaryStreamSink) WriteHeader(desc StreamDescriptor) error {
	s.desc = desc
	return nil
}

func (s *ElementaryStreamSink) WritePacket(pkt *Packet) error {
	n, err := s.w.Write(pkt.Data())
	s.written += uint64(n)
	if err != nil {
		return fmt.Errorf("elementary stream write: %w", err)
	}
	return nil
}

func (s *ElementaryStreamSink) WriteTrailer() error { return nil }

// BytesWritten returns the total payload bytes written so far.
func (s *ElementaryStreamSink) BytesWritten() uint64 { return s.written }
