package av

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/looplab/fsm"
)

// Encoder pipeline states.
const (
	encoderStateOpen     = "open"
	encoderStateEncoding = "encoding"
	encoderStateFlushing = "flushing"
	encoderStateFinished = "finished"
)

// EncoderStats counts pipeline activity.
type EncoderStats struct {
	FramesIn   uint64
	PacketsOut uint64
	KeyFrames  uint64
	BytesOut   uint64
}

// Encoder drives one native encode context and delivers the compressed
// packets to a PacketSink. Frames go in through Encode in presentation
// order; packets come out in decoding order with strictly increasing DTS.
// Finish must be called exactly once to drain the codec's lookahead and
// write the sink trailer; dropping an Encoder via Close instead aborts
// the stream without a trailer.
//
// An Encoder exclusively owns its codec context and must not be used from
// more than one goroutine at a time.
type Encoder struct {
	ctx      uintptr // *AVCodecContext, 0 after Close
	sink     PacketSink
	settings Settings
	timeBase Rational
	machine  *fsm.FSM

	headerWritten bool
	forceKey      bool
	lastDTS       int64

	stats     EncoderStats
	finishErr error
	finished  bool
}

// NewEncoder opens an encode context for the given settings and binds it
// to sink. The codec identity is resolved by name, preferring the common
// external implementations (libx264 for h264). The requested pixel format
// is checked against what the codec accepts; a mismatch fails with
// ErrInvalidSettings rather than letting the codec pick silently.
//
// Only video encoding is supported.
func NewEncoder(sink PacketSink, settings Settings) (*Encoder, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Type != MediaTypeVideo {
		return nil, fmt.Errorf("audio encoding: %w", ErrInvalidSettings)
	}
	if sink == nil {
		return nil, fmt.Errorf("nil sink: %w", ErrInvalidSettings)
	}

	codec, name := findEncoder(settings.Codec)
	if codec == 0 {
		return nil, fmt.Errorf("encoder %q: %w", settings.Codec, ErrUnsupportedCodec)
	}
	if !codecAcceptsPixelFormat(codec, settings.PixelFormat) {
		return nil, fmt.Errorf("encoder %q does not accept %s: %w", name, settings.PixelFormat, ErrInvalidSettings)
	}

	ctx := avcodecAllocContext3(codec)
	if ctx == 0 {
		return nil, fmt.Errorf("avcodec_alloc_context3: %w", ErrOutOfMemory)
	}
	timeBase := settings.timeBase()

	c := (*avCodecContextC)(unsafe.Pointer(ctx))
	c.bitRate = settings.BitRate
	c.timeBase = toAVRational(timeBase)
	c.width = int32(settings.Width)
	c.height = int32(settings.Height)
	c.pixFmt = int32(settings.PixelFormat)
	if settings.GOPSize > 0 {
		c.gopSize = int32(settings.GOPSize)
	}
	if !settings.AllowBFrames {
		avOptSetInt(ctx, "bf", 0, avOptSearchChildren)
	}

	var dict uintptr
	dictPtr := uintptr(unsafe.Pointer(&dict))
	if settings.Quality >= 0 {
		avDictSet(dictPtr, "crf", strconv.Itoa(settings.Quality), 0)
	}
	for key, value := range settings.CodecOptions {
		avDictSet(dictPtr, key, value, 0)
	}
	code := avcodecOpen2(ctx, codec, dictPtr)
	avDictFree(dictPtr)
	if code < 0 {
		avcodecFreeContext(uintptr(unsafe.Pointer(&ctx)))
		return nil, wrapAVError("avcodec_open2", code, ErrInitialization)
	}

	e := &Encoder{
		ctx:      ctx,
		sink:     sink,
		settings: settings,
		timeBase: timeBase,
		lastDTS:  avNoPTS,
	}
	e.machine = fsm.NewFSM(
		encoderStateOpen,
		fsm.Events{
			{Name: "encode", Src: []string{encoderStateOpen}, Dst: encoderStateEncoding},
			{Name: "finish", Src: []string{encoderStateOpen, encoderStateEncoding}, Dst: encoderStateFlushing},
			{Name: "finished", Src: []string{encoderStateFlushing}, Dst: encoderStateFinished},
			{Name: "close", Src: []string{encoderStateOpen, encoderStateEncoding, encoderStateFlushing}, Dst: encoderStateFinished},
		},
		fsm.Callbacks{},
	)
	return e, nil
}

// findEncoder resolves a codec identity to an opened-by-name native
// encoder, trying candidates in preference order.
func findEncoder(codec CodecID) (uintptr, string) {
	for _, name := range encoderCandidates(codec) {
		if ptr := avcodecFindEncoderByName(name); ptr != 0 {
			return ptr, name
		}
	}
	return 0, ""
}

// codecAcceptsPixelFormat walks the codec's advertised pixel format list
// (terminated by -1). An empty list means the codec accepts anything.
func codecAcceptsPixelFormat(codec uintptr, format PixelFormat) bool {
	list := (*avCodecC)(unsafe.Pointer(codec)).pixFmts
	if list == 0 {
		return true
	}
	for {
		pf := *(*int32)(unsafe.Pointer(list))
		if pf == -1 {
			return false
		}
		if pf == int32(format) {
			return true
		}
		list += unsafe.Sizeof(int32(0))
	}
}

// Encode submits one raw frame stamped with the given presentation time
// and delivers any packets the codec emits. Codecs with lookahead buffer
// several frames before the first packet appears; Finish drains the rest.
//
// The frame must match the configured pixel format and dimensions
// exactly; mismatches fail with ErrInvalidBuffer without touching the
// codec. Use a Converter first when sources do not match. The frame's
// timestamp metadata is rewritten into the encoder time base; its pixel
// storage is never mutated.
func (e *Encoder) Encode(frame *Frame, ts Time) error {
	if !e.machine.Is(encoderStateOpen) && !e.machine.Is(encoderStateEncoding) {
		return fmt.Errorf("encode in state %s: %w", e.machine.Current(), ErrPipelineClosed)
	}
	if frame == nil || frame.ptr == 0 {
		return fmt.Errorf("encode released frame: %w", ErrInvalidBuffer)
	}
	if frame.Width() != e.settings.Width || frame.Height() != e.settings.Height || frame.PixelFormat() != e.settings.PixelFormat {
		return fmt.Errorf("frame %s %dx%d, encoder expects %s %dx%d: %w",
			frame.PixelFormat(), frame.Width(), frame.Height(),
			e.settings.PixelFormat, e.settings.Width, e.settings.Height,
			ErrInvalidBuffer)
	}
	if !ts.Valid() {
		ts = frame.PTS()
	}
	if !ts.Valid() {
		return fmt.Errorf("frame without presentation time: %w", ErrInvalidBuffer)
	}
	frame.SetTimeBase(e.timeBase)
	if err := frame.SetPTS(ts); err != nil {
		return err
	}
	if e.forceKey {
		frame.forceKeyframe()
		e.forceKey = false
	}
	if e.machine.Is(encoderStateOpen) {
		_ = e.machine.Event(context.Background(), "encode")
	}
	e.stats.FramesIn++

	for {
		code := avcodecSendFrame(e.ctx, frame.ptr)
		if code >= 0 {
			break
		}
		if isAVAgain(code) {
			// Codec output buffer full; make room before resending.
			if err := e.drain(); err != nil {
				return err
			}
			continue
		}
		return wrapAVError("avcodec_send_frame", code, ErrEncode)
	}
	return e.drain()
}

// ForceKeyframe requests that the next encoded frame be coded as an
// I picture regardless of the keyframe interval, for receivers joining
// mid-stream.
func (e *Encoder) ForceKeyframe() { e.forceKey = true }

// drain pulls every packet the codec has ready and delivers it to the
// sink. Returns ErrExhausted once a flushing codec signals end of stream.
func (e *Encoder) drain() error {
	for i := 0; i < maxDrainIterations; i++ {
		ptr := avPacketAlloc()
		if ptr == 0 {
			return fmt.Errorf("av_packet_alloc: %w", ErrOutOfMemory)
		}
		code := avcodecReceivePacket(e.ctx, ptr)
		if code < 0 {
			avPacketFree(uintptr(unsafe.Pointer(&ptr)))
			switch {
			case isAVAgain(code):
				return nil
			case code == avErrorEOF:
				return ErrExhausted
			default:
				return wrapAVError("avcodec_receive_packet", code, ErrEncode)
			}
		}
		if err := e.deliver(newPacketOwned(ptr, e.timeBase)); err != nil {
			return err
		}
	}
	return fmt.Errorf("codec did not stop emitting packets after %d iterations: %w", maxDrainIterations, ErrEncode)
}

// deliver stamps and hands one packet to the sink, writing the stream
// header first if this is the first packet. DTS is forced strictly
// increasing; codecs occasionally repeat a DTS across a flush boundary
// and downstream muxers reject that.
func (e *Encoder) deliver(pkt *Packet) error {
	defer pkt.Close()

	c := pkt.c()
	if c.dts != avNoPTS {
		if e.lastDTS != avNoPTS && c.dts <= e.lastDTS {
			c.dts = e.lastDTS + 1
			if c.pts != avNoPTS && c.pts < c.dts {
				c.pts = c.dts
			}
		}
		e.lastDTS = c.dts
	}

	if !e.headerWritten {
		if err := e.sink.WriteHeader(e.settings.descriptor(e.timeBase)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		e.headerWritten = true
	}
	e.stats.PacketsOut++
	e.stats.BytesOut += uint64(pkt.Size())
	if pkt.IsKeyframe() {
		e.stats.KeyFrames++
	}
	if err := e.sink.WritePacket(pkt); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// Finish flushes the codec's lookahead, delivers the remaining packets
// and writes the sink trailer. It is idempotent; repeated calls return
// the first outcome. After Finish the encoder accepts no more frames.
func (e *Encoder) Finish() error {
	if e.finished {
		return e.finishErr
	}
	e.finished = true
	if err := e.machine.Event(context.Background(), "finish"); err != nil {
		e.finishErr = fmt.Errorf("finish in state %s: %w", e.machine.Current(), ErrPipelineClosed)
		return e.finishErr
	}

	if code := avcodecSendFrame(e.ctx, 0); code < 0 && code != avErrorEOF {
		e.finishErr = wrapAVError("avcodec_send_frame (eof)", code, ErrEncode)
	}
	if e.finishErr == nil {
		if err := e.drain(); err != nil && !errors.Is(err, ErrExhausted) {
			e.finishErr = err
		}
	}

	// A stream with zero packets still gets its header before the
	// trailer, so sinks always see a complete envelope.
	if e.finishErr == nil && !e.headerWritten {
		if err := e.sink.WriteHeader(e.settings.descriptor(e.timeBase)); err != nil {
			e.finishErr = fmt.Errorf("write header: %w", err)
		} else {
			e.headerWritten = true
		}
	}
	if e.headerWritten {
		if err := e.sink.WriteTrailer(); err != nil && e.finishErr == nil {
			e.finishErr = fmt.Errorf("write trailer: %w", err)
		}
	}
	_ = e.machine.Event(context.Background(), "finished")
	return e.finishErr
}

// State returns the pipeline state name, for logging and tests.
func (e *Encoder) State() string { return e.machine.Current() }

// Stats returns a snapshot of pipeline counters.
func (e *Encoder) Stats() EncoderStats { return e.stats }

// TimeBase returns the base outgoing packets are stamped in.
func (e *Encoder) TimeBase() Rational { return e.timeBase }

// Close releases the codec context deterministically. Closing without
// Finish aborts the stream; no trailer is written. Safe to call more
// than once.
func (e *Encoder) Close() error {
	if e.machine != nil && !e.machine.Is(encoderStateFinished) {
		_ = e.machine.Event(context.Background(), "close")
	}
	if e.ctx != 0 {
		avcodecFreeContext(uintptr(unsafe.Pointer(&e.ctx)))
		e.ctx = 0
	}
	return nil
}
