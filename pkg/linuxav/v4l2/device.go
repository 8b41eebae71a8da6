//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"unsafe"
)

// Device is an open V4L2 video node or sub-device.
type Device struct {
	fd   int
	path string
}

// Open opens a device node for non-blocking read/write access.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd, path: path}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Fd returns the underlying file descriptor.
func (d *Device) Fd() int {
	return d.fd
}

// Close releases the file descriptor. Calling Close more than once is a no-op.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := close(d.fd)
	d.fd = -1
	return err
}

// QueryCapability issues VIDIOC_QUERYCAP.
func (d *Device) QueryCapability() (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}, nil
}

// MetaFormat reads the current meta format for the given buffer type.
func (d *Device) MetaFormat(bufType uint32) (MetaFormat, error) {
	raw := v4l2Format{typ: bufType}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&raw)); err != nil {
		return MetaFormat{}, err
	}
	meta := (*v4l2MetaFormat)(unsafe.Pointer(&raw.fmt[0]))
	return MetaFormat{DataFormat: meta.dataformat, BufferSize: meta.buffersize}, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (fd %d)", d.path, d.fd)
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
