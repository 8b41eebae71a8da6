//go:build linux

package v4l2

import "unsafe"

// Layouts shared by every supported architecture.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2RequestBuffers{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Control{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2ExtControl{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2MbusFramefmt{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2SubdevFormat{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2SubdevSelection{})]byte{}
)

// Request codes derived from the structure sizes of the running architecture.
var (
	vidiocQuerycap         = ior('V', 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocGFmt             = iowr('V', 4, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs          = iowr('V', 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQuerybuf         = iowr('V', 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQbuf             = iowr('V', 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDqbuf            = iowr('V', 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamon         = iow('V', 18, unsafe.Sizeof(int32(0)))
	vidiocStreamoff        = iow('V', 19, unsafe.Sizeof(int32(0)))
	vidiocGCtrl            = iowr('V', 27, unsafe.Sizeof(v4l2Control{}))
	vidiocSCtrl            = iowr('V', 28, unsafe.Sizeof(v4l2Control{}))
	vidiocGExtCtrls        = iowr('V', 71, unsafe.Sizeof(v4l2ExtControls{}))
	vidiocSExtCtrls        = iowr('V', 72, unsafe.Sizeof(v4l2ExtControls{}))
	vidiocSubdevGFmt       = iowr('V', 4, unsafe.Sizeof(v4l2SubdevFormat{}))
	vidiocSubdevGSelection = iowr('V', 61, unsafe.Sizeof(v4l2SubdevSelection{}))
)

// v4l2Capability has size 104 bytes.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// v4l2RequestBuffers has size 20 bytes.
type v4l2RequestBuffers struct {
	count        uint32   // offset 0
	typ          uint32   // offset 4
	memory       uint32   // offset 8
	capabilities uint32   // offset 12
	flags        uint8    // offset 16
	reserved     [3]uint8 // offset 17
}

// v4l2MetaFormat overlays the start of the v4l2Format union.
type v4l2MetaFormat struct {
	dataformat uint32 // offset 0
	buffersize uint32 // offset 4
}

// v4l2Control has size 8 bytes.
type v4l2Control struct {
	id    uint32
	value int32
}

// v4l2ExtControl is packed in the kernel headers and has size 20 bytes.
type v4l2ExtControl struct {
	id        uint32  // offset 0
	size      uint32  // offset 4
	reserved2 uint32  // offset 8
	value     [8]byte // offset 12, union of value/value64/pointers
}

// v4l2MbusFramefmt has size 48 bytes.
type v4l2MbusFramefmt struct {
	width        uint32     // offset 0
	height       uint32     // offset 4
	code         uint32     // offset 8
	field        uint32     // offset 12
	colorspace   uint32     // offset 16
	ycbcrEnc     uint16     // offset 20
	quantization uint16     // offset 22
	xferFunc     uint16     // offset 24
	flags        uint16     // offset 26
	reserved     [10]uint16 // offset 28
}

// v4l2SubdevFormat has size 88 bytes.
type v4l2SubdevFormat struct {
	which    uint32           // offset 0
	pad      uint32           // offset 4
	format   v4l2MbusFramefmt // offset 8
	stream   uint32           // offset 56
	reserved [7]uint32        // offset 60
}

// v4l2Rect has size 16 bytes.
type v4l2Rect struct {
	left   int32
	top    int32
	width  uint32
	height uint32
}

// v4l2SubdevSelection has size 64 bytes.
type v4l2SubdevSelection struct {
	which    uint32    // offset 0
	pad      uint32    // offset 4
	target   uint32    // offset 8
	flags    uint32    // offset 12
	r        v4l2Rect  // offset 16
	stream   uint32    // offset 32
	reserved [7]uint32 // offset 36
}
