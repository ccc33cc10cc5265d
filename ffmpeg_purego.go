//go:build darwin || linux

// Runtime bindings to the FFmpeg shared libraries via purego.
//
// The mirror structs below match the FFmpeg 6.x ABI (libavutil 58,
// libavcodec 60, libswscale 7). Init refuses other major versions rather
// than risking silent field misreads. Only fields this package touches are
// mirrored; the native structs are always allocated by FFmpeg itself, never
// in Go.

package av

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Required library major versions (FFmpeg 6.x).
const (
	avutilMajor  = 58
	avcodecMajor = 60
	swscaleMajor = 7
)

var (
	ffmpegOnce    sync.Once
	ffmpegInitErr error
	ffmpegLoaded  bool
)

// Library handles.
var (
	avutilHandle  uintptr
	avcodecHandle uintptr
	swscaleHandle uintptr
)

// libavutil
var (
	avutilVersion       func() uint32
	avStrerrorNative    func(code int32, buf uintptr, bufSize uint64) int32
	avMallocNative      func(size uint64) uintptr
	avFrameAlloc        func() uintptr
	avFrameFree         func(frame uintptr) // AVFrame**
	avFrameClone        func(src uintptr) uintptr
	avFrameGetBuffer    func(frame uintptr, align int32) int32
	avFrameMakeWritable func(frame uintptr) int32
	avFrameIsWritable   func(frame uintptr) int32
	avBufferGetRefCount func(buf uintptr) int32
	avChannelLayoutDef  func(layout uintptr, nbChannels int32)
	avOptSet            func(obj uintptr, name string, val string, searchFlags int32) int32
	avOptSetInt         func(obj uintptr, name string, val int64, searchFlags int32) int32
	avDictSet           func(dict uintptr, key string, value string, flags int32) int32 // AVDictionary**
	avDictFree          func(dict uintptr)                                              // AVDictionary**
)

// libavcodec
var (
	avcodecVersion            func() uint32
	avcodecFindDecoderByName  func(name string) uintptr
	avcodecFindEncoderByName  func(name string) uintptr
	avcodecAllocContext3      func(codec uintptr) uintptr
	avcodecFreeContext        func(ctx uintptr) // AVCodecContext**
	avcodecOpen2              func(ctx, codec, options uintptr) int32
	avcodecSendPacket         func(ctx, pkt uintptr) int32
	avcodecReceiveFrame       func(ctx, frame uintptr) int32
	avcodecSendFrame          func(ctx, frame uintptr) int32
	avcodecReceivePacket      func(ctx, pkt uintptr) int32
	avcodecParametersAlloc    func() uintptr
	avcodecParametersFree     func(par uintptr) // AVCodecParameters**
	avcodecParametersToCtx    func(ctx, par uintptr) int32
	avPacketAlloc             func() uintptr
	avPacketFree              func(pkt uintptr) // AVPacket**
	avPacketClone             func(src uintptr) uintptr
	avNewPacket               func(pkt uintptr, size int32) int32
	avPacketMakeWritable      func(pkt uintptr) int32
)

// libswscale
var (
	swscaleVersionNative func() uint32
	swsGetContext        func(srcW, srcH, srcFmt, dstW, dstH, dstFmt, flags int32, srcFilter, dstFilter, param uintptr) uintptr
	swsScaleFrame        func(ctx, dst, src uintptr) int32
	swsFreeContext       func(ctx uintptr)
)

// avRational mirrors AVRational.
type avRational struct {
	num int32
	den int32
}

func (r avRational) Rational() Rational { return Rational{Num: r.num, Den: r.den} }

func toAVRational(r Rational) avRational { return avRational{num: r.Num, den: r.Den} }

// avPacketC mirrors the head of AVPacket (libavcodec 60).
type avPacketC struct {
	buf           uintptr
	pts           int64
	dts           int64
	data          uintptr
	size          int32
	streamIndex   int32
	flags         int32
	_             int32
	sideData      uintptr
	sideDataElems int32
	_             int32
	duration      int64
	pos           int64
	opaque        uintptr
	opaqueRef     uintptr
	timeBase      avRational
}

// avFrameC mirrors the head of AVFrame (libavutil 58).
type avFrameC struct {
	data                 [8]uintptr
	linesize             [8]int32
	extendedData         uintptr
	width                int32
	height               int32
	nbSamples            int32
	format               int32
	keyFrame             int32
	pictType             int32
	sampleAspectRatio    avRational
	pts                  int64
	pktDTS               int64
	timeBase             avRational
	codedPictureNumber   int32
	displayPictureNumber int32
	quality              int32
	_                    int32
	opaque               uintptr
	repeatPict           int32
	interlacedFrame      int32
	topFieldFirst        int32
	paletteHasChanged    int32
	reorderedOpaque      int64
	sampleRate           int32
	_                    int32
	channelLayout        uint64
	buf                  [8]uintptr
}

// avChannelLayoutC mirrors AVChannelLayout.
type avChannelLayoutC struct {
	order      int32
	nbChannels int32
	mask       uint64
	opaque     uintptr
}

// avCodecParametersC mirrors AVCodecParameters (libavcodec 60).
type avCodecParametersC struct {
	codecType          int32
	codecID            int32
	codecTag           uint32
	_                  int32
	extradata          uintptr
	extradataSize      int32
	format             int32
	bitRate            int64
	bitsPerCodedSample int32
	bitsPerRawSample   int32
	profile            int32
	level              int32
	width              int32
	height             int32
	sampleAspectRatio  avRational
	fieldOrder         int32
	colorRange         int32
	colorPrimaries     int32
	colorTrc           int32
	colorSpace         int32
	chromaLocation     int32
	videoDelay         int32
	_                  int32
	channelLayout      uint64
	channels           int32
	sampleRate         int32
	blockAlign         int32
	frameSize          int32
	initialPadding     int32
	trailingPadding    int32
	seekPreroll        int32
	_                  int32
	chLayout           avChannelLayoutC
}

// avCodecContextC mirrors the head of AVCodecContext (libavcodec 60).
// Fields past pixFmt are reached through the AVOptions API only.
type avCodecContextC struct {
	avClass          uintptr
	logLevelOffset   int32
	codecType        int32
	codec            uintptr
	codecID          int32
	codecTag         uint32
	privData         uintptr
	internal         uintptr
	opaque           uintptr
	bitRate          int64
	bitRateTolerance int32
	globalQuality    int32
	compressionLevel int32
	flags            int32
	flags2           int32
	_                int32
	extradata        uintptr
	extradataSize    int32
	timeBase         avRational
	ticksPerFrame    int32
	delay            int32
	width            int32
	height           int32
	codedWidth       int32
	codedHeight      int32
	gopSize          int32
	pixFmt           int32
}

// avCodecC mirrors the head of AVCodec (libavcodec 60).
type avCodecC struct {
	name                 uintptr
	longName             uintptr
	mediaType            int32
	id                   int32
	capabilities         int32
	maxLowres            uint8
	_                    [3]byte
	supportedFramerates  uintptr
	pixFmts              uintptr // terminated by -1
	supportedSamplerates uintptr // terminated by 0
	sampleFmts           uintptr // terminated by -1
}

// Native enum values used across the package.
const (
	avMediaTypeVideo = 0
	avMediaTypeAudio = 1

	avPictureTypeI = 1

	avPktFlagKey     = 0x0001
	avPktFlagCorrupt = 0x0002

	swsBilinear = 2

	avOptSearchChildren = 1
)

// Init loads the FFmpeg shared libraries and resolves every symbol this
// package uses. It is idempotent and safe for concurrent use; only the
// first call does work. Pipelines and buffer wrappers fail with the
// returned error until a call succeeds.
func Init() error {
	ffmpegOnce.Do(func() {
		ffmpegInitErr = loadFFmpeg()
		if ffmpegInitErr == nil {
			ffmpegLoaded = true
		}
	})
	return ffmpegInitErr
}

// Available reports whether the native libraries loaded successfully.
func Available() bool {
	return Init() == nil
}

func loadFFmpeg() error {
	var err error
	avutilHandle, err = dlopenFirst(libCandidates("libavutil", avutilMajor))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	avcodecHandle, err = dlopenFirst(libCandidates("libavcodec", avcodecMajor))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	swscaleHandle, err = dlopenFirst(libCandidates("libswscale", swscaleMajor))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	registerAVUtil()
	registerAVCodec()
	registerSwscale()

	if got := avutilVersion() >> 16; got != avutilMajor {
		return fmt.Errorf("%w: libavutil major %d, need %d (FFmpeg 6.x)", ErrInitialization, got, avutilMajor)
	}
	if got := avcodecVersion() >> 16; got != avcodecMajor {
		return fmt.Errorf("%w: libavcodec major %d, need %d (FFmpeg 6.x)", ErrInitialization, got, avcodecMajor)
	}
	if got := swscaleVersionNative() >> 16; got != swscaleMajor {
		return fmt.Errorf("%w: libswscale major %d, need %d (FFmpeg 6.x)", ErrInitialization, got, swscaleMajor)
	}
	return nil
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate paths")
	}
	return 0, fmt.Errorf("failed to load %s: %w", filepath.Base(paths[len(paths)-1]), lastErr)
}

// libCandidates builds the search list for one library: environment
// override first, then bare sonames (resolved by the dynamic linker), then
// common install prefixes.
func libCandidates(base string, major int) []string {
	var names []string
	if runtime.GOOS == "darwin" {
		names = []string{
			fmt.Sprintf("%s.%d.dylib", base, major),
			base + ".dylib",
		}
	} else {
		names = []string{
			fmt.Sprintf("%s.so.%d", base, major),
			base + ".so",
		}
	}

	var paths []string
	if envPath := os.Getenv("AV_FFMPEG_LIB_PATH"); envPath != "" {
		for _, n := range names {
			paths = append(paths, filepath.Join(envPath, n))
		}
	}
	paths = append(paths, names...)
	prefixes := []string{"/usr/local/lib", "/usr/lib"}
	if runtime.GOOS == "darwin" {
		prefixes = []string{"/opt/homebrew/lib", "/usr/local/lib"}
	}
	for _, p := range prefixes {
		for _, n := range names {
			paths = append(paths, filepath.Join(p, n))
		}
	}
	return paths
}

func registerAVUtil() {
	purego.RegisterLibFunc(&avutilVersion, avutilHandle, "avutil_version")
	purego.RegisterLibFunc(&avStrerrorNative, avutilHandle, "av_strerror")
	purego.RegisterLibFunc(&avMallocNative, avutilHandle, "av_malloc")
	purego.RegisterLibFunc(&avFrameAlloc, avutilHandle, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, avutilHandle, "av_frame_free")
	purego.RegisterLibFunc(&avFrameClone, avutilHandle, "av_frame_clone")
	purego.RegisterLibFunc(&avFrameGetBuffer, avutilHandle, "av_frame_get_buffer")
	purego.RegisterLibFunc(&avFrameMakeWritable, avutilHandle, "av_frame_make_writable")
	purego.RegisterLibFunc(&avFrameIsWritable, avutilHandle, "av_frame_is_writable")
	purego.RegisterLibFunc(&avBufferGetRefCount, avutilHandle, "av_buffer_get_ref_count")
	purego.RegisterLibFunc(&avChannelLayoutDef, avutilHandle, "av_channel_layout_default")
	purego.RegisterLibFunc(&avOptSet, avutilHandle, "av_opt_set")
	purego.RegisterLibFunc(&avOptSetInt, avutilHandle, "av_opt_set_int")
	purego.RegisterLibFunc(&avDictSet, avutilHandle, "av_dict_set")
	purego.RegisterLibFunc(&avDictFree, avutilHandle, "av_dict_free")
}

func registerAVCodec() {
	purego.RegisterLibFunc(&avcodecVersion, avcodecHandle, "avcodec_version")
	purego.RegisterLibFunc(&avcodecFindDecoderByName, avcodecHandle, "avcodec_find_decoder_by_name")
	purego.RegisterLibFunc(&avcodecFindEncoderByName, avcodecHandle, "avcodec_find_encoder_by_name")
	purego.RegisterLibFunc(&avcodecAllocContext3, avcodecHandle, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, avcodecHandle, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, avcodecHandle, "avcodec_open2")
	purego.RegisterLibFunc(&avcodecSendPacket, avcodecHandle, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, avcodecHandle, "avcodec_receive_frame")
	purego.RegisterLibFunc(&avcodecSendFrame, avcodecHandle, "avcodec_send_frame")
	purego.RegisterLibFunc(&avcodecReceivePacket, avcodecHandle, "avcodec_receive_packet")
	purego.RegisterLibFunc(&avcodecParametersAlloc, avcodecHandle, "avcodec_parameters_alloc")
	purego.RegisterLibFunc(&avcodecParametersFree, avcodecHandle, "avcodec_parameters_free")
	purego.RegisterLibFunc(&avcodecParametersToCtx, avcodecHandle, "avcodec_parameters_to_context")
	purego.RegisterLibFunc(&avPacketAlloc, avcodecHandle, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, avcodecHandle, "av_packet_free")
	purego.RegisterLibFunc(&avPacketClone, avcodecHandle, "av_packet_clone")
	purego.RegisterLibFunc(&avNewPacket, avcodecHandle, "av_new_packet")
	purego.RegisterLibFunc(&avPacketMakeWritable, avcodecHandle, "av_packet_make_writable")
}

func registerSwscale() {
	purego.RegisterLibFunc(&swscaleVersionNative, swscaleHandle, "swscale_version")
	purego.RegisterLibFunc(&swsGetContext, swscaleHandle, "sws_getContext")
	purego.RegisterLibFunc(&swsScaleFrame, swscaleHandle, "sws_scale_frame")
	purego.RegisterLibFunc(&swsFreeContext, swscaleHandle, "sws_freeContext")
}

// avStrerror returns FFmpeg's text for an error code, or a fallback when
// the libraries are not loaded.
func avStrerror(code int32) string {
	if !ffmpegLoaded {
		return "ffmpeg not loaded"
	}
	buf := make([]byte, 128)
	if avStrerrorNative(code, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf))) < 0 {
		return "unknown error"
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// byteSlice builds a Go byte slice view over native memory. The view is
// valid only while the owning native object stays alive.
func byteSlice(ptr uintptr, length int) []byte {
	if ptr == 0 || length <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length)
}
