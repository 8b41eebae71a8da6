//go:build linux

package v4l2

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RequestBuffers asks the driver for count memory-mapped buffers and returns
// the number it actually allocated.
func (d *Device) RequestBuffers(bufType, count uint32) (uint32, error) {
	req := v4l2RequestBuffers{count: count, typ: bufType, memory: MemoryMmap}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

// QueryBuffer returns the length and mmap offset of buffer index.
func (d *Device) QueryBuffer(bufType, index uint32) (Buffer, error) {
	raw := v4l2Buffer{index: index, typ: bufType, memory: MemoryMmap}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&raw)); err != nil {
		return Buffer{}, err
	}
	return raw.toBuffer(), nil
}

// QueueBuffer enqueues buffer index. bytesUsed is only meaningful for output
// buffer types.
func (d *Device) QueueBuffer(bufType, index, bytesUsed uint32) error {
	raw := v4l2Buffer{index: index, typ: bufType, memory: MemoryMmap, bytesused: bytesUsed}
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&raw))
}

// DequeueBuffer dequeues the next completed buffer.
func (d *Device) DequeueBuffer(bufType uint32) (Buffer, error) {
	raw := v4l2Buffer{typ: bufType, memory: MemoryMmap}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&raw)); err != nil {
		return Buffer{}, err
	}
	return raw.toBuffer(), nil
}

// StreamOn starts streaming on the given buffer type.
func (d *Device) StreamOn(bufType uint32) error {
	typ := int32(bufType)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff stops streaming and returns all buffers to the dequeued state.
func (d *Device) StreamOff(bufType uint32) error {
	typ := int32(bufType)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// Map maps a driver buffer into the process address space.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Unmap releases a region returned by Map.
func (d *Device) Unmap(b []byte) error {
	return unix.Munmap(b)
}

// Wait blocks until a buffer is ready to dequeue or the timeout elapses.
// Output nodes signal completion as writable, capture nodes as readable.
// It returns false on timeout.
func (d *Device) Wait(timeout time.Duration, output bool) (bool, error) {
	events := int16(unix.POLLIN)
	if output {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: events}}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		n, err := unix.Poll(fds, int(remaining.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&unix.POLLERR != 0 {
			return false, unix.EIO
		}
		return true, nil
	}
}

func (b *v4l2Buffer) toBuffer() Buffer {
	return Buffer{
		Index:     b.index,
		Type:      b.typ,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Sequence:  b.sequence,
		Offset:    b.offset,
		Length:    b.length,
	}
}
