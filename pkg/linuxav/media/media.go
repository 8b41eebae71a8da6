//go:build linux

// Package media provides pure Go bindings to the Linux media controller API:
// device identity and entity enumeration on /dev/media* nodes.
package media

import (
	"bytes"
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FlagNextEntity asks ENUM_ENTITIES for the first entity with an id greater
// than the one supplied.
const FlagNextEntity uint32 = 1 << 31

var (
	_ [256]byte = [unsafe.Sizeof(mediaDeviceInfo{})]byte{}
	_ [256]byte = [unsafe.Sizeof(mediaEntityDesc{})]byte{}
)

var (
	mediaIocDeviceInfo   = iowr('|', 0x00, unsafe.Sizeof(mediaDeviceInfo{}))
	mediaIocEnumEntities = iowr('|', 0x01, unsafe.Sizeof(mediaEntityDesc{}))
)

// mediaDeviceInfo has size 256 bytes.
type mediaDeviceInfo struct {
	driver        [16]byte   // offset 0
	model         [32]byte   // offset 16
	serial        [40]byte   // offset 48
	busInfo       [32]byte   // offset 88
	mediaVersion  uint32     // offset 120
	hwRevision    uint32     // offset 124
	driverVersion uint32     // offset 128
	reserved      [31]uint32 // offset 132
}

// mediaEntityDesc has size 256 bytes.
type mediaEntityDesc struct {
	id       uint32    // offset 0
	name     [32]byte  // offset 4
	typ      uint32    // offset 36
	revision uint32    // offset 40
	flags    uint32    // offset 44
	groupID  uint32    // offset 48
	pads     uint16    // offset 52
	links    uint16    // offset 54
	reserved [4]uint32 // offset 56
	major    uint32    // offset 72, union dev
	minor    uint32    // offset 76
	_        [176]byte // rest of the union
}

// DeviceInfo identifies a media controller device.
type DeviceInfo struct {
	Driver        string
	Model         string
	Serial        string
	BusInfo       string
	MediaVersion  uint32
	HWRevision    uint32
	DriverVersion uint32
}

// Entity is one node of the media graph.
type Entity struct {
	ID    uint32
	Name  string
	Type  uint32
	Flags uint32
	Pads  uint16
	Links uint16
	Major uint32
	Minor uint32
}

// Device is an open media controller node.
type Device struct {
	fd   int
	path string
}

// Open opens a media controller node read-only.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd, path: path}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Close releases the file descriptor. Calling Close more than once is a no-op.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// Info issues MEDIA_IOC_DEVICE_INFO.
func (d *Device) Info() (DeviceInfo, error) {
	raw := mediaDeviceInfo{}
	if err := ioctl(d.fd, mediaIocDeviceInfo, unsafe.Pointer(&raw)); err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		Driver:        cstr(raw.driver[:]),
		Model:         cstr(raw.model[:]),
		Serial:        cstr(raw.serial[:]),
		BusInfo:       cstr(raw.busInfo[:]),
		MediaVersion:  raw.mediaVersion,
		HWRevision:    raw.hwRevision,
		DriverVersion: raw.driverVersion,
	}, nil
}

// NextEntity returns the entity following id in the graph. Passing 0 returns
// the first entity. The driver signals the end of the graph with EINVAL.
func (d *Device) NextEntity(id uint32) (Entity, error) {
	raw := mediaEntityDesc{id: id | FlagNextEntity}
	if err := ioctl(d.fd, mediaIocEnumEntities, unsafe.Pointer(&raw)); err != nil {
		return Entity{}, err
	}
	return Entity{
		ID:    raw.id,
		Name:  cstr(raw.name[:]),
		Type:  raw.typ,
		Flags: raw.flags,
		Pads:  raw.pads,
		Links: raw.links,
		Major: raw.major,
		Minor: raw.minor,
	}, nil
}

// Entities walks the whole graph in id order.
func (d *Device) Entities() ([]Entity, error) {
	var entities []Entity
	var id uint32
	for {
		ent, err := d.NextEntity(id)
		if errors.Is(err, unix.EINVAL) {
			return entities, nil
		}
		if err != nil {
			return entities, err
		}
		entities = append(entities, ent)
		id = ent.ID
	}
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
