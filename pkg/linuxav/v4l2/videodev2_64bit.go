//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
	_ [32]byte  = [unsafe.Sizeof(v4l2ExtControls{})]byte{}
)

// v4l2Format has size 208 bytes; the union is 8-byte aligned.
type v4l2Format struct {
	typ uint32    // offset 0
	_   [4]byte   // padding
	fmt [200]byte // offset 8
}

// v4l2Buffer has size 88 bytes.
type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	_         [4]byte  // padding
	timestamp [16]byte // offset 24, struct timeval
	timecode  [16]byte // offset 40
	sequence  uint32   // offset 56
	memory    uint32   // offset 60
	offset    uint32   // offset 64, union m
	_         [4]byte  // rest of union m
	length    uint32   // offset 72
	reserved2 uint32   // offset 76
	requestFd int32    // offset 80
	_         [4]byte  // padding to 88
}

// v4l2ExtControls has size 32 bytes.
type v4l2ExtControls struct {
	ctrlClass uint32         // offset 0
	count     uint32         // offset 4
	errorIdx  uint32         // offset 8
	requestFd int32          // offset 12
	reserved  uint32         // offset 16
	_         [4]byte        // padding
	controls  unsafe.Pointer // offset 24
}
