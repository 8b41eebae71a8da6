//go:build linux && arm && !arm64

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [80]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2ExtControls{})]byte{}
)

// v4l2Format has size 204 bytes; the union is 4-byte aligned on 32-bit.
type v4l2Format struct {
	typ uint32    // offset 0
	fmt [200]byte // offset 4
}

// v4l2Buffer has size 80 bytes (64-bit time_t userspace).
type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	_         [4]byte  // padding
	timestamp [16]byte // offset 24
	timecode  [16]byte // offset 40
	sequence  uint32   // offset 56
	memory    uint32   // offset 60
	offset    uint32   // offset 64, union m
	length    uint32   // offset 68
	reserved2 uint32   // offset 72
	requestFd int32    // offset 76
}

// v4l2ExtControls has size 24 bytes.
type v4l2ExtControls struct {
	ctrlClass uint32         // offset 0
	count     uint32         // offset 4
	errorIdx  uint32         // offset 8
	requestFd int32          // offset 12
	reserved  uint32         // offset 16
	controls  unsafe.Pointer // offset 20
}
