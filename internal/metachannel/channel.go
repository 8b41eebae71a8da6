// Package metachannel moves fixed-layout ISP records between user space and a
// V4L2 meta-data node through memory-mapped buffers.
//
// A Channel walks Closed -> Opened -> BuffersMapped -> (Queued -> Streaming ->
// Dequeued)* -> StreamStopped -> Closed. Close is valid from any state.
package metachannel

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// DefaultTimeout bounds the wait for one buffer completion.
const DefaultTimeout = 2 * time.Second

// Meta data formats of the DCMIPP ISP nodes.
var (
	FormatParams = v4l2.FourCC('S', 'T', 'I', 'P')
	FormatStats  = v4l2.FourCC('S', 'T', 'I', 'S')
)

// Direction tells whether records flow to the driver or from it.
type Direction int

// Directions.
const (
	Output Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "capture"
}

func (d Direction) bufType() uint32 {
	if d == Output {
		return v4l2.BufTypeMetaOutput
	}
	return v4l2.BufTypeMetaCapture
}

func (d Direction) capability() uint32 {
	if d == Output {
		return v4l2.CapMetaOutput | v4l2.CapStreaming
	}
	return v4l2.CapMetaCapture | v4l2.CapStreaming
}

// Driver is the V4L2 surface a Channel needs. *v4l2.Device implements it.
type Driver interface {
	QueryCapability() (v4l2.Capability, error)
	MetaFormat(bufType uint32) (v4l2.MetaFormat, error)
	RequestBuffers(bufType, count uint32) (uint32, error)
	QueryBuffer(bufType, index uint32) (v4l2.Buffer, error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(b []byte) error
	QueueBuffer(bufType, index, bytesUsed uint32) error
	DequeueBuffer(bufType uint32) (v4l2.Buffer, error)
	StreamOn(bufType uint32) error
	StreamOff(bufType uint32) error
	Wait(timeout time.Duration, output bool) (bool, error)
	SetExtControl(class, id uint32, value int32) error
	Close() error
}

// Opener opens the driver behind a device node.
type Opener func(path string) (Driver, error)

// OpenDevice is the Opener for real device nodes.
func OpenDevice(path string) (Driver, error) {
	return v4l2.Open(path)
}

// Options configures a Channel.
type Options struct {
	Timeout time.Duration // per-buffer completion deadline, DefaultTimeout when zero
	Opener  Opener        // OpenDevice when nil
}

type state int

const (
	stateClosed state = iota
	stateOpened
	stateMapped
)

// Frame is one dequeued buffer.
type Frame struct {
	Index     uint32
	Sequence  uint32
	BytesUsed uint32
	Data      []byte
}

// Channel is one meta-data node opened for a single direction.
type Channel struct {
	path    string
	dir     Direction
	drv     Driver
	buffers [][]byte
	state   state
	timeout time.Duration
	logger  *slog.Logger
}

// Open opens path, checks that it supports dir with streaming I/O and that
// its meta format is dataFormat.
func Open(path string, dir Direction, dataFormat uint32, opts *Options) (*Channel, error) {
	opener := Opener(OpenDevice)
	timeout := DefaultTimeout
	if opts != nil {
		if opts.Opener != nil {
			opener = opts.Opener
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}

	drv, err := opener(path)
	if err != nil {
		return nil, isp.NewError(isp.ErrIO, "open "+path, err)
	}

	c := &Channel{
		path:    path,
		dir:     dir,
		drv:     drv,
		state:   stateOpened,
		timeout: timeout,
		logger:  logging.GetLogger("channel").With("node", path, "direction", dir.String()),
	}
	if err := c.validate(dataFormat); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Channel) validate(dataFormat uint32) error {
	caps, err := c.drv.QueryCapability()
	if err != nil {
		return isp.NewError(isp.ErrIO, "query capabilities", err)
	}
	if !caps.Has(c.dir.capability()) {
		return isp.Errorf(isp.ErrIncompatibleDevice,
			"%s is not a streaming meta %s device (caps 0x%08x)", c.path, c.dir, caps.Effective())
	}

	format, err := c.drv.MetaFormat(c.dir.bufType())
	if err != nil {
		return isp.NewError(isp.ErrIO, "get meta format", err)
	}
	if format.DataFormat != dataFormat {
		return isp.Errorf(isp.ErrIncompatibleDevice, "%s has format %q, want %q",
			c.path, v4l2.FormatFourCC(format.DataFormat), v4l2.FormatFourCC(dataFormat))
	}

	c.logger.Debug("Meta node opened", "driver", caps.Driver, "card", caps.Card, "buffer_size", format.BufferSize)
	return nil
}

// Path returns the device node of the channel.
func (c *Channel) Path() string {
	return c.path
}

// BufferCount returns the number of mapped buffers.
func (c *Channel) BufferCount() int {
	return len(c.buffers)
}

// MapBuffers requests count buffers and maps every buffer the driver grants.
func (c *Channel) MapBuffers(count uint32) error {
	if c.state != stateOpened {
		return isp.Errorf(isp.ErrInvalidArgument, "%s: buffers already mapped or channel closed", c.path)
	}

	granted, err := c.drv.RequestBuffers(c.dir.bufType(), count)
	if err != nil {
		return isp.FromDriver("request buffers", err)
	}
	if granted == 0 {
		return isp.Errorf(isp.ErrOutOfMemory, "%s: driver granted no buffers", c.path)
	}

	c.buffers = make([][]byte, 0, granted)
	for i := uint32(0); i < granted; i++ {
		buf, err := c.drv.QueryBuffer(c.dir.bufType(), i)
		if err != nil {
			c.unmapAll()
			return isp.FromDriver(fmt.Sprintf("query buffer %d", i), err)
		}
		mem, err := c.drv.Map(buf.Offset, buf.Length)
		if err != nil {
			c.unmapAll()
			return isp.NewError(isp.ErrOutOfMemory, fmt.Sprintf("map buffer %d", i), err)
		}
		c.buffers = append(c.buffers, mem)
	}

	c.state = stateMapped
	c.logger.Debug("Buffers mapped", "requested", count, "granted", granted, "length", len(c.buffers[0]))
	return nil
}

// SetControl writes an integer extended control on the channel's node.
func (c *Channel) SetControl(class, id uint32, value int32) error {
	if c.state == stateClosed {
		return isp.Errorf(isp.ErrInvalidArgument, "%s: channel closed", c.path)
	}
	if err := c.drv.SetExtControl(class, id, value); err != nil {
		return isp.FromDriver(fmt.Sprintf("set control 0x%08x", id), err)
	}
	return nil
}

// Close unmaps every buffer and releases the node. It is safe to call in
// any state and more than once.
func (c *Channel) Close() error {
	if c.state == stateClosed {
		return nil
	}
	c.unmapAll()
	c.state = stateClosed
	if err := c.drv.Close(); err != nil {
		return isp.NewError(isp.ErrIO, "close "+c.path, err)
	}
	return nil
}

func (c *Channel) unmapAll() {
	for _, mem := range c.buffers {
		if err := c.drv.Unmap(mem); err != nil {
			c.logger.Warn("Failed to unmap buffer", "error", err)
		}
	}
	c.buffers = nil
	if c.state == stateMapped {
		c.state = stateOpened
	}
}
