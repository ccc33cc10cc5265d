package av

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"unsafe"

	"github.com/looplab/fsm"
)

// Decoder pipeline states.
const (
	decoderStateIdle     = "idle"
	decoderStateFeeding  = "feeding"
	decoderStateDraining = "draining"
	decoderStateFlushed  = "flushed"
)

// avInputBufferPaddingSize mirrors AV_INPUT_BUFFER_PADDING_SIZE.
const avInputBufferPaddingSize = 64

// Drain guard, matching the retry bound the reference flush loop uses.
const maxDrainIterations = 100

// DecoderStats counts pipeline activity.
type DecoderStats struct {
	PacketsSubmitted uint64
	FramesDecoded    uint64
	KeyFrames        uint64
	DecodeErrors     uint64
}

// Decoder drives one native decode context for a single stream. Feed it
// compressed packets with Submit, pull raw frames with Receive (or let
// Sequence drive both), and call Flush exactly once at end of input to
// drain frames the codec holds back for reordering.
//
// A Decoder exclusively owns its codec context and must not be used from
// more than one goroutine at a time. Frames it returns are fully owned by
// the caller.
type Decoder struct {
	ctx      uintptr // *AVCodecContext, 0 after Close
	desc     StreamDescriptor
	timeBase Rational
	machine  *fsm.FSM

	// Decoded frames drained from the codec, in the order the codec
	// produced them (presentation order; the pipeline never reorders).
	queue []*Frame

	stats  DecoderStats
	seqErr error
}

// OpenDecoder allocates and opens a decode context for the stream
// described by desc. Fails with ErrUnsupportedCodec when the loaded
// FFmpeg build has no such decoder, ErrInvalidTimeBase for a bad stream
// time base, and ErrInitialization for native open failures.
func OpenDecoder(desc StreamDescriptor) (*Decoder, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if !desc.TimeBase.IsValid() {
		return nil, fmt.Errorf("stream time base %s: %w", desc.TimeBase, ErrInvalidTimeBase)
	}
	codec := avcodecFindDecoderByName(string(desc.Codec))
	if codec == 0 {
		return nil, fmt.Errorf("decoder %q: %w", desc.Codec, ErrUnsupportedCodec)
	}

	ctx := avcodecAllocContext3(codec)
	if ctx == 0 {
		return nil, fmt.Errorf("avcodec_alloc_context3: %w", ErrOutOfMemory)
	}
	d := &Decoder{ctx: ctx, desc: desc, timeBase: desc.TimeBase}

	if err := d.applyParameters(codec); err != nil {
		d.freeContext()
		return nil, err
	}
	if code := avcodecOpen2(ctx, codec, 0); code < 0 {
		d.freeContext()
		return nil, wrapAVError("avcodec_open2", code, ErrInitialization)
	}

	d.machine = fsm.NewFSM(
		decoderStateIdle,
		fsm.Events{
			{Name: "open", Src: []string{decoderStateIdle}, Dst: decoderStateFeeding},
			{Name: "flush", Src: []string{decoderStateFeeding}, Dst: decoderStateDraining},
			{Name: "drained", Src: []string{decoderStateDraining}, Dst: decoderStateFlushed},
			{Name: "close", Src: []string{decoderStateIdle, decoderStateFeeding, decoderStateDraining}, Dst: decoderStateFlushed},
		},
		fsm.Callbacks{},
	)
	_ = d.machine.Event(context.Background(), "open")
	return d, nil
}

// applyParameters copies the stream parameters into the codec context
// through a native AVCodecParameters, including out-of-band extradata.
func (d *Decoder) applyParameters(codec uintptr) error {
	parPtr := avcodecParametersAlloc()
	if parPtr == 0 {
		return fmt.Errorf("avcodec_parameters_alloc: %w", ErrOutOfMemory)
	}
	defer avcodecParametersFree(uintptr(unsafe.Pointer(&parPtr)))

	par := (*avCodecParametersC)(unsafe.Pointer(parPtr))
	par.codecID = (*avCodecC)(unsafe.Pointer(codec)).id
	switch d.desc.Type {
	case MediaTypeVideo:
		par.codecType = avMediaTypeVideo
		par.width = int32(d.desc.Width)
		par.height = int32(d.desc.Height)
		par.format = int32(d.desc.PixelFormat)
	case MediaTypeAudio:
		par.codecType = avMediaTypeAudio
		par.sampleRate = int32(d.desc.SampleRate)
		par.format = int32(d.desc.SampleFormat)
		channels := d.desc.Channels
		if channels <= 0 {
			channels = 2
		}
		avChannelLayoutDef(parPtr+unsafe.Offsetof(avCodecParametersC{}.chLayout), int32(channels))
	}
	if len(d.desc.ExtraData) > 0 {
		total := len(d.desc.ExtraData) + avInputBufferPaddingSize
		buf := avMallocNative(uint64(total))
		if buf == 0 {
			return fmt.Errorf("extradata alloc: %w", ErrOutOfMemory)
		}
		// Bitstream parsers overread into the padding region, which the
		// extradata contract requires to be zeroed.
		data := byteSlice(buf, total)
		n := copy(data, d.desc.ExtraData)
		for i := n; i < total; i++ {
			data[i] = 0
		}
		par.extradata = buf
		par.extradataSize = int32(n)
	}
	if code := avcodecParametersToCtx(d.ctx, parPtr); code < 0 {
		return wrapAVError("avcodec_parameters_to_context", code, ErrInitialization)
	}
	return nil
}

// Submit hands one compressed packet to the native decoder and drains
// every frame that becomes available before returning. A single packet
// may yield zero, one or several frames.
//
// Corrupt packet data fails with ErrDecode for this call only; the
// pipeline stays open and the next packet decodes normally. After Flush
// or Close, Submit fails with ErrPipelineClosed.
func (d *Decoder) Submit(pkt *Packet) error {
	if !d.machine.Is(decoderStateFeeding) {
		return fmt.Errorf("submit in state %s: %w", d.machine.Current(), ErrPipelineClosed)
	}
	if pkt == nil || pkt.ptr == 0 {
		return fmt.Errorf("submit released packet: %w", ErrInvalidBuffer)
	}
	if err := pkt.RescaleTS(d.timeBase); err != nil {
		return err
	}
	d.stats.PacketsSubmitted++

	if code := avcodecSendPacket(d.ctx, pkt.ptr); code < 0 {
		d.stats.DecodeErrors++
		return wrapAVError("avcodec_send_packet", code, ErrDecode)
	}
	return d.drainAvailable()
}

// drainAvailable pulls frames out of the codec until it signals that more
// input is required. The native decoder buffers internally; leaving
// frames undrained before the next send is how output gets lost.
func (d *Decoder) drainAvailable() error {
	for {
		frame, err := d.receiveOne()
		if err != nil {
			if errors.Is(err, ErrDrained) || errors.Is(err, ErrExhausted) {
				return nil
			}
			return err
		}
		d.queue = append(d.queue, frame)
	}
}

// receiveOne pulls a single frame from the codec, translating the native
// EAGAIN/EOF protocol into ErrDrained/ErrExhausted.
func (d *Decoder) receiveOne() (*Frame, error) {
	ptr := avFrameAlloc()
	if ptr == 0 {
		return nil, fmt.Errorf("av_frame_alloc: %w", ErrOutOfMemory)
	}
	code := avcodecReceiveFrame(d.ctx, ptr)
	if code < 0 {
		avFrameFree(uintptr(unsafe.Pointer(&ptr)))
		switch {
		case isAVAgain(code):
			return nil, ErrDrained
		case code == avErrorEOF:
			return nil, ErrExhausted
		default:
			d.stats.DecodeErrors++
			return nil, wrapAVError("avcodec_receive_frame", code, ErrDecode)
		}
	}

	frame := newFrameOwned(ptr, d.timeBase)
	c := frame.c()
	// Decoders leave pts unset for streams that only carry DTS; fall
	// back to the packet DTS so every frame carries a presentation time.
	if c.pts == avNoPTS && c.pktDTS != avNoPTS {
		c.pts = c.pktDTS
	}
	d.stats.FramesDecoded++
	if frame.Keyframe() {
		d.stats.KeyFrames++
	}
	return frame, nil
}

// Receive returns the next decoded frame in presentation order, with its
// timestamp in the stream time base. It fails with ErrDrained when more
// input is needed and with ErrExhausted once the pipeline is flushed and
// every buffered frame has been delivered.
func (d *Decoder) Receive() (Time, *Frame, error) {
	if len(d.queue) > 0 {
		frame := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		return frame.PTS(), frame, nil
	}
	if d.machine.Is(decoderStateFlushed) {
		return NoTime(), nil, ErrExhausted
	}
	return NoTime(), nil, ErrDrained
}

// Flush signals end of input to the native decoder and drains the frames
// it held back for reordering into the receive queue. After Flush the
// pipeline only delivers what is already buffered; further Submit calls
// fail with ErrPipelineClosed. Flush is idempotent.
func (d *Decoder) Flush() error {
	if d.machine.Is(decoderStateFlushed) || d.machine.Is(decoderStateDraining) {
		return nil
	}
	if err := d.machine.Event(context.Background(), "flush"); err != nil {
		return fmt.Errorf("flush in state %s: %w", d.machine.Current(), ErrPipelineClosed)
	}
	if code := avcodecSendPacket(d.ctx, 0); code < 0 && code != avErrorEOF {
		_ = d.machine.Event(context.Background(), "drained")
		return wrapAVError("avcodec_send_packet (eof)", code, ErrDecode)
	}
	var drainErr error
	for i := 0; i < maxDrainIterations; i++ {
		frame, err := d.receiveOne()
		if err != nil {
			if !errors.Is(err, ErrExhausted) && !errors.Is(err, ErrDrained) {
				drainErr = err
			}
			break
		}
		d.queue = append(d.queue, frame)
	}
	_ = d.machine.Event(context.Background(), "drained")
	return drainErr
}

// Next drives the pipeline from a packet source: it returns buffered
// frames first, reads and submits packets as needed, flushes on source
// EOF, and finally reports ErrExhausted. Corrupt packets are counted and
// skipped.
func (d *Decoder) Next(src PacketSource) (Time, *Frame, error) {
	for {
		ts, frame, err := d.Receive()
		if err == nil {
			return ts, frame, nil
		}
		if !errors.Is(err, ErrDrained) {
			return NoTime(), nil, err
		}

		pkt, rerr := src.ReadPacket()
		if errors.Is(rerr, io.EOF) {
			if ferr := d.Flush(); ferr != nil {
				return NoTime(), nil, ferr
			}
			continue
		}
		if rerr != nil {
			return NoTime(), nil, rerr
		}
		serr := d.Submit(pkt)
		pkt.Close()
		if serr != nil && !errors.Is(serr, ErrDecode) {
			return NoTime(), nil, serr
		}
	}
}

// Sequence exposes the pipeline as a lazy, finite sequence of
// (Time, Frame) elements. The sequence ends at stream exhaustion or on
// the first fatal error, which Err reports afterwards. The sequence is
// not restartable; reopen the decoder to decode again.
func (d *Decoder) Sequence(src PacketSource) iter.Seq2[Time, *Frame] {
	return func(yield func(Time, *Frame) bool) {
		for {
			ts, frame, err := d.Next(src)
			if err != nil {
				if !errors.Is(err, ErrExhausted) {
					d.seqErr = err
				}
				return
			}
			if !yield(ts, frame) {
				return
			}
		}
	}
}

// Err returns the error that terminated a Sequence early, if any.
func (d *Decoder) Err() error { return d.seqErr }

// State returns the pipeline state name, for logging and tests.
func (d *Decoder) State() string { return d.machine.Current() }

// Stats returns a snapshot of pipeline counters.
func (d *Decoder) Stats() DecoderStats { return d.stats }

// TimeBase returns the stream time base frames are stamped in.
func (d *Decoder) TimeBase() Rational { return d.timeBase }

// Close releases the codec context and every queued frame
// deterministically. Safe to call in any state and more than once;
// aborting mid-stream is simply dropping the pipeline via Close.
func (d *Decoder) Close() error {
	for _, frame := range d.queue {
		if frame != nil {
			frame.Close()
		}
	}
	d.queue = nil
	if d.machine != nil && !d.machine.Is(decoderStateFlushed) {
		_ = d.machine.Event(context.Background(), "close")
	}
	d.freeContext()
	return nil
}

func (d *Decoder) freeContext() {
	if d.ctx != 0 {
		avcodecFreeContext(uintptr(unsafe.Pointer(&d.ctx)))
		d.ctx = 0
	}
}
