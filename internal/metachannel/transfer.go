package metachannel

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/smazurov/ispctl/internal/isp"
)

// OneShotTransfer runs one complete stream cycle.
//
// On an output channel payload is copied into buffer 0 and handed to the
// driver; the returned frame holds the buffer as the driver gave it back. On
// a capture channel payload must be nil; every buffer is queued and the first
// completed one is returned. Frame data is always a copy.
func (c *Channel) OneShotTransfer(payload []byte) (Frame, error) {
	if err := c.ready(); err != nil {
		return Frame{}, err
	}

	bytesUsed := uint32(0)
	if c.dir == Output {
		if len(payload) > len(c.buffers[0]) {
			return Frame{}, isp.Errorf(isp.ErrInvalidArgument,
				"payload of %d bytes exceeds buffer of %d", len(payload), len(c.buffers[0]))
		}
		copy(c.buffers[0], payload)
		bytesUsed = uint32(len(payload))
		if err := c.queue(0, bytesUsed); err != nil {
			return Frame{}, err
		}
	} else if err := c.queueAll(); err != nil {
		c.streamOffQuietly()
		return Frame{}, err
	}

	// STREAMOFF also returns queued buffers when streaming never started
	if err := c.streamOn(); err != nil {
		c.streamOffQuietly()
		return Frame{}, err
	}

	frame, err := c.dequeue()
	if err != nil {
		c.streamOffQuietly()
		return Frame{}, err
	}
	frame.Data = append([]byte(nil), frame.Data...)

	if c.dir == Capture {
		if err := c.queue(frame.Index, 0); err != nil {
			c.streamOffQuietly()
			return Frame{}, err
		}
	}

	if err := c.streamOff(); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// ContinuousTransfer queues every buffer, starts streaming and hands each
// completed buffer to onEach before re-queueing it. Frame data aliases the
// mapped buffer and must be consumed before onEach returns. The loop ends
// when shouldStop reports true after a buffer, or on the first error.
// Streaming is always stopped on return.
func (c *Channel) ContinuousTransfer(onEach func(Frame) error, shouldStop func() bool) (err error) {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.queueAll(); err != nil {
		c.streamOffQuietly()
		return err
	}
	if err := c.streamOn(); err != nil {
		c.streamOffQuietly()
		return err
	}
	defer func() {
		if offErr := c.streamOff(); err == nil {
			err = offErr
		}
	}()

	for {
		frame, err := c.dequeue()
		if err != nil {
			return err
		}
		if err := onEach(frame); err != nil {
			return err
		}
		if err := c.queue(frame.Index, 0); err != nil {
			return err
		}
		if shouldStop != nil && shouldStop() {
			return nil
		}
	}
}

func (c *Channel) ready() error {
	if c.state != stateMapped {
		return isp.Errorf(isp.ErrInvalidArgument, "%s: buffers not mapped", c.path)
	}
	return nil
}

func (c *Channel) queue(index, bytesUsed uint32) error {
	if err := c.drv.QueueBuffer(c.dir.bufType(), index, bytesUsed); err != nil {
		return isp.FromDriver(fmt.Sprintf("queue buffer %d", index), err)
	}
	return nil
}

func (c *Channel) queueAll() error {
	for i := range c.buffers {
		if err := c.queue(uint32(i), 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) streamOn() error {
	if err := c.drv.StreamOn(c.dir.bufType()); err != nil {
		return isp.FromDriver("stream on", err)
	}
	return nil
}

func (c *Channel) streamOff() error {
	if err := c.drv.StreamOff(c.dir.bufType()); err != nil {
		return isp.FromDriver("stream off", err)
	}
	return nil
}

func (c *Channel) streamOffQuietly() {
	if err := c.drv.StreamOff(c.dir.bufType()); err != nil {
		c.logger.Warn("Failed to stop stream after error", "error", err)
	}
}

// dequeue waits for the next completed buffer. A spurious wake-up that
// leaves nothing to dequeue keeps waiting until the deadline.
func (c *Channel) dequeue() (Frame, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Frame{}, isp.Errorf(isp.ErrTimeout, "%s: no buffer completed within %s", c.path, c.timeout)
		}
		ready, err := c.drv.Wait(remaining, c.dir == Output)
		if err != nil {
			return Frame{}, isp.FromDriver("wait for buffer", err)
		}
		if !ready {
			return Frame{}, isp.Errorf(isp.ErrTimeout, "%s: no buffer completed within %s", c.path, c.timeout)
		}

		buf, err := c.drv.DequeueBuffer(c.dir.bufType())
		if errors.Is(err, syscall.EAGAIN) {
			continue
		}
		if err != nil {
			return Frame{}, isp.FromDriver("dequeue buffer", err)
		}
		if int(buf.Index) >= len(c.buffers) {
			return Frame{}, isp.Errorf(isp.ErrIO, "%s: driver returned unknown buffer %d", c.path, buf.Index)
		}

		data := c.buffers[buf.Index]
		if c.dir == Capture && buf.BytesUsed > 0 && int(buf.BytesUsed) <= len(data) {
			data = data[:buf.BytesUsed]
		}
		c.logger.Debug("Buffer dequeued", "index", buf.Index, "sequence", buf.Sequence, "bytes", buf.BytesUsed)
		return Frame{
			Index:     buf.Index,
			Sequence:  buf.Sequence,
			BytesUsed: buf.BytesUsed,
			Data:      data,
		}, nil
	}
}
