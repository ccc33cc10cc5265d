package av

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"
)

// avNoPTS mirrors AV_NOPTS_VALUE.
const avNoPTS = math.MinInt64

// Packet wraps one native compressed-data buffer (AVPacket). A Packet
// value exclusively owns one reference to the underlying storage and
// releases it exactly once in Close. Clone yields a second independent
// owner of the same storage.
//
// A Packet is not safe for concurrent use, but may be handed off between
// goroutines; the native reference counting is atomic.
type Packet struct {
	ptr      uintptr // *AVPacket, 0 after Close
	timeBase Rational
}

func (p *Packet) c() *avPacketC {
	return (*avPacketC)(unsafe.Pointer(p.ptr))
}

// NewPacket allocates a packet with a reference-counted payload buffer of
// the given size (zero for an empty packet shell).
func NewPacket(size int) (*Packet, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	ptr := avPacketAlloc()
	if ptr == 0 {
		return nil, fmt.Errorf("av_packet_alloc: %w", ErrOutOfMemory)
	}
	if size > 0 {
		if code := avNewPacket(ptr, int32(size)); code < 0 {
			avPacketFree(uintptr(unsafe.Pointer(&ptr)))
			return nil, wrapAVError("av_new_packet", code, ErrOutOfMemory)
		}
	}
	return newPacketOwned(ptr, Rational{Num: 1, Den: 90000}), nil
}

// NewPacketFromData allocates a packet and copies data into its payload.
func NewPacketFromData(data []byte) (*Packet, error) {
	pkt, err := NewPacket(len(data))
	if err != nil {
		return nil, err
	}
	copy(byteSlice(pkt.c().data, len(data)), data)
	return pkt, nil
}

// newPacketOwned adopts a native packet the caller already owns one
// reference to.
func newPacketOwned(ptr uintptr, timeBase Rational) *Packet {
	p := &Packet{ptr: ptr, timeBase: timeBase}
	runtime.SetFinalizer(p, (*Packet).finalize)
	return p
}

func (p *Packet) finalize() {
	if p.ptr != 0 {
		avPacketFree(uintptr(unsafe.Pointer(&p.ptr)))
	}
}

// Close releases the packet's reference. The storage is freed when the
// last owner releases. Close is idempotent; using the packet afterwards
// fails with ErrInvalidBuffer.
func (p *Packet) Close() error {
	if p.ptr != 0 {
		avPacketFree(uintptr(unsafe.Pointer(&p.ptr)))
		p.ptr = 0
		runtime.SetFinalizer(p, nil)
	}
	return nil
}

// Clone returns a second independent owner of the same payload storage.
// The native reference count is incremented; the data is not copied.
func (p *Packet) Clone() (*Packet, error) {
	if p.ptr == 0 {
		return nil, fmt.Errorf("clone of released packet: %w", ErrInvalidBuffer)
	}
	ptr := avPacketClone(p.ptr)
	if ptr == 0 {
		return nil, fmt.Errorf("av_packet_clone: %w", ErrOutOfMemory)
	}
	return newPacketOwned(ptr, p.timeBase), nil
}

// Data returns a read-only view of the compressed payload. The view is
// valid until the packet is closed. Returns nil for a released or empty
// packet.
func (p *Packet) Data() []byte {
	if p.ptr == 0 {
		return nil
	}
	c := p.c()
	return byteSlice(c.data, int(c.size))
}

// WritableData returns a mutable view of the payload. If the storage is
// shared with other owners it is copied first (copy-on-write), so other
// owners never observe the mutation.
func (p *Packet) WritableData() ([]byte, error) {
	if p.ptr == 0 {
		return nil, fmt.Errorf("write access to released packet: %w", ErrInvalidBuffer)
	}
	if code := avPacketMakeWritable(p.ptr); code < 0 {
		return nil, wrapAVError("av_packet_make_writable", code, ErrOutOfMemory)
	}
	c := p.c()
	return byteSlice(c.data, int(c.size)), nil
}

// RefCount returns the number of owners of the payload storage, or 0 for
// a released or bufferless packet.
func (p *Packet) RefCount() int {
	if p.ptr == 0 || p.c().buf == 0 {
		return 0
	}
	return int(avBufferGetRefCount(p.c().buf))
}

// Size returns the payload length in bytes.
func (p *Packet) Size() int {
	if p.ptr == 0 {
		return 0
	}
	return int(p.c().size)
}

// TimeBase returns the base the packet's timestamps are expressed in.
func (p *Packet) TimeBase() Rational { return p.timeBase }

// SetTimeBase relabels the timestamp base without rescaling values.
func (p *Packet) SetTimeBase(tb Rational) { p.timeBase = tb }

// PTS returns the presentation timestamp, invalid when unset.
func (p *Packet) PTS() Time {
	if p.ptr == 0 || p.c().pts == avNoPTS {
		return NoTime()
	}
	return NewTime(p.c().pts, p.timeBase)
}

// DTS returns the decoding timestamp, invalid when unset.
func (p *Packet) DTS() Time {
	if p.ptr == 0 || p.c().dts == avNoPTS {
		return NoTime()
	}
	return NewTime(p.c().dts, p.timeBase)
}

// Duration returns the packet duration, invalid when unset.
func (p *Packet) Duration() Time {
	if p.ptr == 0 || p.c().duration == 0 {
		return NoTime()
	}
	return NewTime(p.c().duration, p.timeBase)
}

// SetPTS stamps the presentation timestamp, rescaled into the packet's
// time base.
func (p *Packet) SetPTS(t Time) error {
	return p.setTS(t, func(c *avPacketC, v int64) { c.pts = v })
}

// SetDTS stamps the decoding timestamp, rescaled into the packet's time
// base.
func (p *Packet) SetDTS(t Time) error {
	return p.setTS(t, func(c *avPacketC, v int64) { c.dts = v })
}

// SetDuration stamps the packet duration, rescaled into the packet's
// time base. An invalid Time marks the duration unknown.
func (p *Packet) SetDuration(t Time) error {
	if p.ptr == 0 {
		return fmt.Errorf("timestamp on released packet: %w", ErrInvalidBuffer)
	}
	if !t.Valid() {
		p.c().duration = 0
		return nil
	}
	r, err := t.Rescaled(p.timeBase)
	if err != nil {
		return err
	}
	p.c().duration = r.Ticks()
	return nil
}

func (p *Packet) setTS(t Time, assign func(*avPacketC, int64)) error {
	if p.ptr == 0 {
		return fmt.Errorf("timestamp on released packet: %w", ErrInvalidBuffer)
	}
	if !t.Valid() {
		assign(p.c(), avNoPTS)
		return nil
	}
	r, err := t.Rescaled(p.timeBase)
	if err != nil {
		return err
	}
	assign(p.c(), r.Ticks())
	return nil
}

// RescaleTS converts the packet's PTS, DTS and duration into the
// destination time base, rounding half away from zero, and relabels the
// packet. Unset timestamps stay unset.
func (p *Packet) RescaleTS(to Rational) error {
	if p.ptr == 0 {
		return fmt.Errorf("rescale of released packet: %w", ErrInvalidBuffer)
	}
	if !to.IsValid() {
		return fmt.Errorf("rescale to %s: %w", to, ErrInvalidTimeBase)
	}
	c := p.c()
	if c.pts != avNoPTS {
		v, err := RescaleRounded(c.pts, p.timeBase, to)
		if err != nil {
			return err
		}
		c.pts = v
	}
	if c.dts != avNoPTS {
		v, err := RescaleRounded(c.dts, p.timeBase, to)
		if err != nil {
			return err
		}
		c.dts = v
	}
	if c.duration != 0 {
		v, err := RescaleRounded(c.duration, p.timeBase, to)
		if err != nil {
			return err
		}
		c.duration = v
	}
	p.timeBase = to
	return nil
}

// StreamIndex returns the originating stream index.
func (p *Packet) StreamIndex() int {
	if p.ptr == 0 {
		return -1
	}
	return int(p.c().streamIndex)
}

// SetStreamIndex tags the packet with a stream index.
func (p *Packet) SetStreamIndex(i int) {
	if p.ptr != 0 {
		p.c().streamIndex = int32(i)
	}
}

// IsKeyframe reports whether the packet starts a keyframe.
func (p *Packet) IsKeyframe() bool {
	return p.ptr != 0 && p.c().flags&avPktFlagKey != 0
}

// IsCorrupt reports whether the demuxer flagged the payload as damaged.
func (p *Packet) IsCorrupt() bool {
	return p.ptr != 0 && p.c().flags&avPktFlagCorrupt != 0
}
