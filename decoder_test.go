package av

import (
	"errors"
	"io"
	"math"
	"testing"
)

// encodeTestStream produces a short in-memory H.264 stream and returns
// the sink holding it.
func encodeTestStream(t *testing.T, width, height, frames int) *BufferSink {
	t.Helper()
	rate := Rational{Num: 25, Den: 1}
	sink := NewBufferSink()
	enc := openTestEncoder(t, sink, PresetH264Realtime(width, height, rate))
	defer enc.Close()
	encodeBars(t, enc, width, height, frames, rate)
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return sink
}

func TestDecoderSequence(t *testing.T) {
	sink := encodeTestStream(t, 64, 64, 50)
	defer sink.Close()

	dec, err := OpenDecoder(sink.Descriptor())
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	var count int
	var lastSeconds float64 = -1
	for ts, frame := range dec.Sequence(sink.Source()) {
		if frame.Width() != 64 || frame.Height() != 64 {
			t.Errorf("frame %d: %dx%d", count, frame.Width(), frame.Height())
		}
		if frame.PixelFormat() != PixelFormatYUV420P {
			t.Errorf("frame %d: format %s", count, frame.PixelFormat())
		}
		if !ts.Valid() {
			t.Errorf("frame %d: no timestamp", count)
		} else {
			if ts.Seconds() <= lastSeconds {
				t.Errorf("frame %d: time went backwards: %v after %v", count, ts.Seconds(), lastSeconds)
			}
			lastSeconds = ts.Seconds()
		}
		count++
		frame.Close()
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("sequence error: %v", err)
	}
	if count != 50 {
		t.Errorf("decoded %d frames, want 50", count)
	}
	stats := dec.Stats()
	if stats.FramesDecoded != 50 || stats.PacketsSubmitted == 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.KeyFrames == 0 {
		t.Error("no keyframes seen")
	}
	if dec.State() != decoderStateFlushed {
		t.Errorf("state after sequence = %s", dec.State())
	}
}

func TestDecoderSubmitReceiveProtocol(t *testing.T) {
	sink := encodeTestStream(t, 64, 64, 10)
	defer sink.Close()

	dec, err := OpenDecoder(sink.Descriptor())
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	if _, _, err := dec.Receive(); !errors.Is(err, ErrDrained) {
		t.Fatalf("receive before input: err = %v, want ErrDrained", err)
	}

	src := sink.Source()
	var decoded int
	for {
		pkt, err := src.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if err := dec.Submit(pkt); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		pkt.Close()
		for {
			_, frame, err := dec.Receive()
			if errors.Is(err, ErrDrained) {
				break
			}
			if err != nil {
				t.Fatalf("Receive: %v", err)
			}
			decoded++
			frame.Close()
		}
	}

	if err := dec.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for {
		_, frame, err := dec.Receive()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Receive after flush: %v", err)
		}
		decoded++
		frame.Close()
	}
	if decoded != 10 {
		t.Errorf("decoded %d frames, want 10", decoded)
	}

	// Flush is idempotent; submitting afterwards is an error.
	if err := dec.Flush(); err != nil {
		t.Errorf("second Flush: %v", err)
	}
	pkt, err := NewPacketFromData([]byte{0, 0, 0, 1, 0x65})
	if err != nil {
		t.Fatalf("NewPacketFromData: %v", err)
	}
	defer pkt.Close()
	if err := dec.Submit(pkt); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("submit after flush: err = %v, want ErrPipelineClosed", err)
	}
}

func TestDecoderOpensWithExtraData(t *testing.T) {
	sink := encodeTestStream(t, 64, 64, 10)
	defer sink.Close()

	// Feed the stream's parameter sets out of band, the way a demuxer
	// hands over container extradata.
	packets := sink.Packets()
	if len(packets) == 0 {
		t.Fatal("no packets in stream")
	}
	var extra []byte
	for _, nalu := range SplitNALUnits(packets[0].Data()) {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case nalTypeSPS, nalTypePPS:
			extra = append(extra, 0, 0, 0, 1)
			extra = append(extra, nalu...)
		}
	}
	if len(extra) == 0 {
		t.Fatal("no parameter sets in first access unit")
	}

	desc := sink.Descriptor()
	desc.ExtraData = extra
	dec, err := OpenDecoder(desc)
	if err != nil {
		t.Fatalf("OpenDecoder with extradata: %v", err)
	}
	defer dec.Close()

	var decoded int
	for ts, frame := range dec.Sequence(sink.Source()) {
		if !ts.Valid() {
			t.Errorf("frame %d: no timestamp", decoded)
		}
		decoded++
		frame.Close()
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("sequence error: %v", err)
	}
	if decoded != 10 {
		t.Errorf("decoded %d frames, want 10", decoded)
	}
}

func TestDecoderCorruptPacketIsNonFatal(t *testing.T) {
	sink := encodeTestStream(t, 64, 64, 10)
	defer sink.Close()

	dec, err := OpenDecoder(sink.Descriptor())
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	garbage := make([]byte, 256)
	for i := range garbage {
		garbage[i] = 0xAB
	}
	pkt, err := NewPacketFromData(garbage)
	if err != nil {
		t.Fatalf("NewPacketFromData: %v", err)
	}
	serr := dec.Submit(pkt)
	pkt.Close()
	if serr != nil && !errors.Is(serr, ErrDecode) {
		t.Fatalf("corrupt packet: err = %v, want ErrDecode or nil", serr)
	}

	// The pipeline must still decode the valid stream afterwards.
	var decoded int
	for _, frame := range dec.Sequence(sink.Source()) {
		decoded++
		frame.Close()
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("sequence error after corrupt packet: %v", err)
	}
	if decoded == 0 {
		t.Error("no frames decoded after corrupt packet")
	}
}

func TestDecoderTimestampSpacing(t *testing.T) {
	sink := encodeTestStream(t, 64, 64, 25)
	defer sink.Close()

	dec, err := OpenDecoder(sink.Descriptor())
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	i := 0
	for ts, frame := range dec.Sequence(sink.Source()) {
		want := float64(i) / 25
		if got := ts.Seconds(); math.Abs(got-want) > 1e-6 {
			t.Errorf("frame %d at %v seconds, want %v", i, got, want)
		}
		i++
		frame.Close()
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("sequence error: %v", err)
	}
}

func TestOpenDecoderErrors(t *testing.T) {
	if !Available() {
		t.Skip("ffmpeg libraries not available")
	}
	tb := Rational{Num: 1, Den: 25000}
	if _, err := OpenDecoder(StreamDescriptor{Codec: "nonsense-codec", Type: MediaTypeVideo, TimeBase: tb}); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("unknown codec: err = %v, want ErrUnsupportedCodec", err)
	}
	if _, err := OpenDecoder(StreamDescriptor{Codec: CodecH264, Type: MediaTypeVideo, TimeBase: Rational{}}); !errors.Is(err, ErrInvalidTimeBase) {
		t.Errorf("invalid time base: err = %v, want ErrInvalidTimeBase", err)
	}
}
