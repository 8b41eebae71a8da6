//go:build linux

package v4l2

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapMetaCapture  = 0x00800000
	CapStreaming    = 0x04000000
	CapMetaOutput   = 0x08000000
	CapDeviceCaps   = 0x80000000
)

// Buffer types.
const (
	BufTypeMetaCapture uint32 = 13
	BufTypeMetaOutput  uint32 = 14
)

// Memory types.
const (
	MemoryMmap uint32 = 1
)

// Control classes and ids.
const (
	CIDExposure          uint32 = 0x00980911
	CtrlClassImageSource uint32 = 0x009e0000
	CIDAnalogueGain      uint32 = 0x009e0903
	CtrlClassImageProc   uint32 = 0x009f0000
	CIDImageProcBase     uint32 = 0x009f0901
)

// Sub-device constants.
const (
	SubdevFormatActive uint32 = 1
	SelTgtCompose      uint32 = 0x0100
)

// Capability describes a device as reported by VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the per-node capabilities when the driver reports them.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Has reports whether all bits of flags are present in the effective capabilities.
func (c Capability) Has(flags uint32) bool {
	return c.Effective()&flags == flags
}

// MetaFormat is the negotiated format of a meta-data node.
type MetaFormat struct {
	DataFormat uint32
	BufferSize uint32
}

// Buffer is the driver view of one queued or dequeued buffer.
type Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	Offset    uint32
	Length    uint32
}

// MbusFormat is an active sub-device pad format.
type MbusFormat struct {
	Width  uint32
	Height uint32
	Code   uint32
	Field  uint32
}

// Rect is a sub-device selection rectangle.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// FourCC packs four characters into a little-endian format code.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// FormatFourCC converts a 4-byte format code to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}
