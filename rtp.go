package av

import (
	"fmt"

	"github.com/pion/rtp"
)

// rtpHeaderSize is the fixed RTP header length without extensions.
const rtpHeaderSize = 12

// rtpClockRate is the RTP clock for video payloads (RFC 6184).
const rtpClockRate = 90000

// RTPWriter receives the packetized stream, typically backed by a UDP
// socket or a WebRTC track.
type RTPWriter interface {
	WriteRTP(*rtp.Packet) error
}

// RTPSink packetizes an H.264 Annex B stream into RTP (RFC 6184) and
// delivers the packets to an RTPWriter. NAL units that fit the MTU go
// out as single-NAL packets; larger ones are fragmented with FU-A. The
// marker bit is set on the last packet of each access unit.
//
// RTPSink implements PacketSink, so it plugs directly into an Encoder.
type RTPSink struct {
	w           RTPWriter
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	packetsOut  uint64
}

// NewRTPSink returns a sink delivering to w with the given SSRC and
// payload type. mtu bounds the size of each RTP packet including the
// header; values <= 0 default to 1200.
func NewRTPSink(w RTPWriter, ssrc uint32, payloadType uint8, mtu int) *RTPSink {
	if mtu <= 0 {
		mtu = 1200
	}
	return &RTPSink{
		w:           w,
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

// WriteHeader checks the stream is one this sink can packetize.
func (s *RTPSink) WriteHeader(desc StreamDescriptor) error {
	if desc.Codec != CodecH264 {
		return fmt.Errorf("rtp packetization of %q: %w", desc.Codec, ErrUnsupportedCodec)
	}
	return nil
}

// WritePacket packetizes one access unit. The packet timestamp is
// rescaled to the 90 kHz RTP clock.
func (s *RTPSink) WritePacket(pkt *Packet) error {
	data := pkt.Data()
	if len(data) == 0 {
		return nil
	}
	units := SplitNALUnits(data)
	if len(units) == 0 {
		return fmt.Errorf("no NAL units in access unit: %w", ErrInvalidBuffer)
	}

	var clock uint32
	if ts := pkt.PTS(); ts.Valid() {
		r, err := ts.Rescaled(Rational{Num: 1, Den: rtpClockRate})
		if err != nil {
			return err
		}
		clock = uint32(r.Ticks())
	}

	for i, nalu := range units {
		last := i == len(units)-1
		if len(nalu) <= s.mtu-rtpHeaderSize {
			if err := s.send(nalu, clock, last); err != nil {
				return err
			}
			continue
		}
		if err := s.fragment(nalu, clock, last); err != nil {
			return err
		}
	}
	s.packetsOut++
	return nil
}

func (s *RTPSink) WriteTrailer() error { return nil }

// AccessUnits returns how many access units have been packetized.
func (s *RTPSink) AccessUnits() uint64 { return s.packetsOut }

func (s *RTPSink) send(payload []byte, clock uint32, marker bool) error {
	return s.w.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    s.payloadType,
			SequenceNumber: s.sequencer.NextSequenceNumber(),
			Timestamp:      clock,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	})
}

// fragment splits one oversized NAL unit into FU-A packets. The marker
// bit goes only on the final fragment of the final NAL unit.
func (s *RTPSink) fragment(nalu []byte, clock uint32, lastNALU bool) error {
	nalHeader := nalu[0]
	nalType := nalHeader & 0x1F
	nri := nalHeader & 0x60

	payload := nalu[1:]
	maxFragment := s.mtu - rtpHeaderSize - 2
	if maxFragment <= 0 {
		return fmt.Errorf("mtu %d too small for FU-A: %w", s.mtu, ErrInvalidSettings)
	}

	for offset := 0; offset < len(payload); {
		end := offset + maxFragment
		if end > len(payload) {
			end = len(payload)
		}

		fuHeader := nalType
		if offset == 0 {
			fuHeader |= 0x80
		}
		if end == len(payload) {
			fuHeader |= 0x40
		}

		out := make([]byte, 2+end-offset)
		out[0] = nri | nalTypeFUA
		out[1] = fuHeader
		copy(out[2:], payload[offset:end])

		marker := end == len(payload) && lastNALU
		if err := s.send(out, clock, marker); err != nil {
			return err
		}
		offset = end
	}
	return nil
}
