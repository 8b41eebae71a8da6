package metachannel

import (
	"bytes"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// fakeDriver simulates a meta-data node with memory-backed buffers.
type fakeDriver struct {
	caps   v4l2.Capability
	format v4l2.MetaFormat
	grant  uint32
	bufLen uint32

	buffers   [][]byte
	queued    []uint32
	bytesUsed map[uint32]uint32
	streaming bool
	sequence  uint32
	neverDone bool
	fill      func(seq uint32, mem []byte)

	streamOnErr error
	queueErr    error
	queueFailAt uint32
	mapErr      error
	mapFailAt   int

	waits      []time.Duration
	waitOutput []bool
	streamOffs int
	unmapped   int
	closed     int
	controls   map[uint32]int32
}

func newFakeDriver(dir Direction) *fakeDriver {
	caps := v4l2.Capability{Capabilities: v4l2.CapDeviceCaps | v4l2.CapStreaming, DeviceCaps: v4l2.CapStreaming}
	format := FormatStats
	if dir == Output {
		caps.DeviceCaps |= v4l2.CapMetaOutput
		format = FormatParams
	} else {
		caps.DeviceCaps |= v4l2.CapMetaCapture
	}
	return &fakeDriver{
		caps:      caps,
		format:    v4l2.MetaFormat{DataFormat: format, BufferSize: 128},
		grant:     1,
		bufLen:    128,
		bytesUsed: make(map[uint32]uint32),
		mapFailAt: -1,
		controls:  make(map[uint32]int32),
	}
}

func (f *fakeDriver) QueryCapability() (v4l2.Capability, error) { return f.caps, nil }

func (f *fakeDriver) MetaFormat(uint32) (v4l2.MetaFormat, error) { return f.format, nil }

func (f *fakeDriver) RequestBuffers(_, _ uint32) (uint32, error) { return f.grant, nil }

func (f *fakeDriver) QueryBuffer(_, index uint32) (v4l2.Buffer, error) {
	return v4l2.Buffer{Index: index, Offset: index * 4096, Length: f.bufLen}, nil
}

func (f *fakeDriver) Map(_, length uint32) ([]byte, error) {
	if f.mapErr != nil && len(f.buffers) == f.mapFailAt {
		return nil, f.mapErr
	}
	mem := make([]byte, length)
	f.buffers = append(f.buffers, mem)
	return mem, nil
}

func (f *fakeDriver) Unmap([]byte) error {
	f.unmapped++
	return nil
}

func (f *fakeDriver) QueueBuffer(_, index, bytesUsed uint32) error {
	if f.queueErr != nil && index == f.queueFailAt {
		return f.queueErr
	}
	for _, q := range f.queued {
		if q == index {
			return syscall.EINVAL
		}
	}
	f.queued = append(f.queued, index)
	f.bytesUsed[index] = bytesUsed
	return nil
}

func (f *fakeDriver) DequeueBuffer(bufType uint32) (v4l2.Buffer, error) {
	if !f.streaming || len(f.queued) == 0 {
		return v4l2.Buffer{}, syscall.EAGAIN
	}
	index := f.queued[0]
	f.queued = f.queued[1:]
	f.sequence++
	used := f.bytesUsed[index]
	if bufType == v4l2.BufTypeMetaCapture {
		used = f.bufLen
		if f.fill != nil {
			f.fill(f.sequence, f.buffers[index])
		}
	}
	return v4l2.Buffer{Index: index, Type: bufType, Sequence: f.sequence, BytesUsed: used}, nil
}

func (f *fakeDriver) StreamOn(uint32) error {
	if f.streamOnErr != nil {
		return f.streamOnErr
	}
	f.streaming = true
	return nil
}

func (f *fakeDriver) StreamOff(uint32) error {
	f.streaming = false
	f.queued = nil
	f.streamOffs++
	return nil
}

func (f *fakeDriver) Wait(timeout time.Duration, output bool) (bool, error) {
	f.waits = append(f.waits, timeout)
	f.waitOutput = append(f.waitOutput, output)
	if f.neverDone {
		return false, nil
	}
	return f.streaming && len(f.queued) > 0, nil
}

func (f *fakeDriver) SetExtControl(_, id uint32, value int32) error {
	f.controls[id] = value
	return nil
}

func (f *fakeDriver) Close() error {
	f.closed++
	return nil
}

func openFake(t *testing.T, drv *fakeDriver, dir Direction, format uint32) (*Channel, error) {
	t.Helper()
	return Open("/dev/video-fake", dir, format, &Options{
		Opener: func(string) (Driver, error) { return drv, nil },
	})
}

func mustOpenMapped(t *testing.T, drv *fakeDriver, dir Direction) *Channel {
	t.Helper()
	format := FormatStats
	if dir == Output {
		format = FormatParams
	}
	ch, err := openFake(t, drv, dir, format)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := ch.MapBuffers(1); err != nil {
		t.Fatalf("MapBuffers() error: %v", err)
	}
	return ch
}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name    string
		driver  func() *fakeDriver
		dir     Direction
		format  uint32
		wantErr error
	}{
		{
			name:   "params output",
			driver: func() *fakeDriver { return newFakeDriver(Output) },
			dir:    Output,
			format: FormatParams,
		},
		{
			name:    "capture node opened for output",
			driver:  func() *fakeDriver { return newFakeDriver(Capture) },
			dir:     Output,
			format:  FormatParams,
			wantErr: isp.ErrIncompatibleDevice,
		},
		{
			name: "no streaming support",
			driver: func() *fakeDriver {
				d := newFakeDriver(Capture)
				d.caps.DeviceCaps &^= v4l2.CapStreaming
				return d
			},
			dir:     Capture,
			format:  FormatStats,
			wantErr: isp.ErrIncompatibleDevice,
		},
		{
			name:    "wrong meta format",
			driver:  func() *fakeDriver { return newFakeDriver(Capture) },
			dir:     Capture,
			format:  FormatParams,
			wantErr: isp.ErrIncompatibleDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := tt.driver()
			ch, err := openFake(t, drv, tt.dir, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
				}
				if drv.closed != 1 {
					t.Errorf("driver closed %d times after failed open, want 1", drv.closed)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			_ = ch.Close()
		})
	}
}

func TestMapBuffersUsesNegotiatedCount(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.grant = 3

	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	if err := ch.MapBuffers(1); err != nil {
		t.Fatalf("MapBuffers() error: %v", err)
	}
	if ch.BufferCount() != 3 {
		t.Errorf("BufferCount() = %d, want 3", ch.BufferCount())
	}
	if err := ch.MapBuffers(1); !errors.Is(err, isp.ErrInvalidArgument) {
		t.Errorf("second MapBuffers() error = %v, want %v", err, isp.ErrInvalidArgument)
	}
}

func TestMapBuffersFailure(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.grant = 2
	drv.mapErr = syscall.ENOMEM
	drv.mapFailAt = 1

	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	if err := ch.MapBuffers(2); !errors.Is(err, isp.ErrOutOfMemory) {
		t.Fatalf("MapBuffers() error = %v, want %v", err, isp.ErrOutOfMemory)
	}
	if drv.unmapped != 1 {
		t.Errorf("unmapped %d buffers after failure, want 1", drv.unmapped)
	}
	if ch.BufferCount() != 0 {
		t.Errorf("BufferCount() = %d after failure, want 0", ch.BufferCount())
	}
}

func TestOneShotOutput(t *testing.T) {
	drv := newFakeDriver(Output)
	ch := mustOpenMapped(t, drv, Output)
	defer ch.Close()

	payload := []byte{0x20, 0, 0, 0, 1, 2, 3}
	frame, err := ch.OneShotTransfer(payload)
	if err != nil {
		t.Fatalf("OneShotTransfer() error: %v", err)
	}
	if !bytes.Equal(drv.buffers[0][:len(payload)], payload) {
		t.Error("payload not copied into the mapped buffer")
	}
	if frame.BytesUsed != uint32(len(payload)) {
		t.Errorf("BytesUsed = %d, want %d", frame.BytesUsed, len(payload))
	}
	if drv.streaming || drv.streamOffs != 1 {
		t.Errorf("streaming = %v, stream offs = %d; want stopped once", drv.streaming, drv.streamOffs)
	}
	if len(drv.waitOutput) != 1 || !drv.waitOutput[0] {
		t.Errorf("wait directions = %v, want one writable wait", drv.waitOutput)
	}
}

func TestOneShotOutputPayloadTooLarge(t *testing.T) {
	drv := newFakeDriver(Output)
	ch := mustOpenMapped(t, drv, Output)
	defer ch.Close()

	if _, err := ch.OneShotTransfer(make([]byte, 129)); !errors.Is(err, isp.ErrInvalidArgument) {
		t.Errorf("OneShotTransfer() error = %v, want %v", err, isp.ErrInvalidArgument)
	}
}

func TestOneShotCapture(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.fill = func(seq uint32, mem []byte) {
		for i := range mem {
			mem[i] = byte(seq)
		}
	}
	ch := mustOpenMapped(t, drv, Capture)
	defer ch.Close()

	frame, err := ch.OneShotTransfer(nil)
	if err != nil {
		t.Fatalf("OneShotTransfer() error: %v", err)
	}
	if len(frame.Data) != 128 || frame.Data[0] != 1 {
		t.Fatalf("frame data = %d bytes starting %v", len(frame.Data), frame.Data[:1])
	}

	// The returned data must survive the next capture.
	drv.buffers[0][0] = 0xff
	if frame.Data[0] != 1 {
		t.Error("frame data aliases the mapped buffer")
	}
	if len(drv.waitOutput) != 1 || drv.waitOutput[0] {
		t.Errorf("wait directions = %v, want one readable wait", drv.waitOutput)
	}
	if drv.streaming {
		t.Error("stream left running")
	}
}

func TestOneShotTimeout(t *testing.T) {
	drv := newFakeDriver(Output)
	drv.neverDone = true
	ch := mustOpenMapped(t, drv, Output)
	defer ch.Close()

	_, err := ch.OneShotTransfer([]byte{1})
	if !errors.Is(err, isp.ErrTimeout) {
		t.Fatalf("OneShotTransfer() error = %v, want %v", err, isp.ErrTimeout)
	}
	if len(drv.waits) == 0 || drv.waits[0] > DefaultTimeout {
		t.Errorf("waits = %v, want a deadline of at most %s", drv.waits, DefaultTimeout)
	}
	if drv.streaming {
		t.Error("stream left running after timeout")
	}
}

func TestOneShotBusy(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.streamOnErr = syscall.EBUSY
	ch := mustOpenMapped(t, drv, Capture)
	defer ch.Close()

	_, err := ch.OneShotTransfer(nil)
	if !errors.Is(err, isp.ErrBusy) {
		t.Errorf("OneShotTransfer() error = %v, want %v", err, isp.ErrBusy)
	}
	if errors.Is(err, isp.ErrTimeout) {
		t.Error("busy must be distinct from timeout")
	}
}

func TestTransferRecoversAfterFailedStart(t *testing.T) {
	tests := []struct {
		name       string
		dir        Direction
		continuous bool
	}{
		{"one-shot output", Output, false},
		{"one-shot capture", Capture, false},
		{"continuous capture", Capture, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver(tt.dir)
			ch := mustOpenMapped(t, drv, tt.dir)
			defer ch.Close()

			var payload []byte
			if tt.dir == Output {
				payload = []byte{1, 2}
			}
			transfer := func() error {
				if tt.continuous {
					return ch.ContinuousTransfer(func(Frame) error { return nil }, func() bool { return true })
				}
				_, err := ch.OneShotTransfer(payload)
				return err
			}

			drv.streamOnErr = syscall.EBUSY
			if err := transfer(); !errors.Is(err, isp.ErrBusy) {
				t.Fatalf("first transfer error = %v, want %v", err, isp.ErrBusy)
			}
			if len(drv.queued) != 0 || drv.streamOffs != 1 {
				t.Errorf("queued = %v, stream offs = %d; want buffers released once", drv.queued, drv.streamOffs)
			}

			drv.streamOnErr = nil
			if err := transfer(); err != nil {
				t.Fatalf("transfer after busy start: %v", err)
			}
		})
	}
}

func TestTransferRecoversAfterPartialQueue(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.grant = 2
	drv.queueErr = syscall.EIO
	drv.queueFailAt = 1
	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	if err := ch.MapBuffers(2); err != nil {
		t.Fatal(err)
	}

	if _, err := ch.OneShotTransfer(nil); !errors.Is(err, isp.ErrIO) {
		t.Fatalf("OneShotTransfer() error = %v, want %v", err, isp.ErrIO)
	}
	if len(drv.queued) != 0 {
		t.Errorf("queued = %v after failed queue, want none", drv.queued)
	}

	drv.queueErr = nil
	if _, err := ch.OneShotTransfer(nil); err != nil {
		t.Fatalf("OneShotTransfer() after failed queue: %v", err)
	}
}

func TestTransferBeforeMap(t *testing.T) {
	drv := newFakeDriver(Capture)
	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ch.OneShotTransfer(nil); !errors.Is(err, isp.ErrInvalidArgument) {
		t.Errorf("OneShotTransfer() error = %v, want %v", err, isp.ErrInvalidArgument)
	}
}

func TestContinuousTransfer(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.grant = 2
	drv.fill = func(seq uint32, mem []byte) { mem[0] = byte(seq) }
	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	if err := ch.MapBuffers(2); err != nil {
		t.Fatal(err)
	}

	var seen []byte
	err = ch.ContinuousTransfer(func(f Frame) error {
		seen = append(seen, f.Data[0])
		return nil
	}, func() bool { return len(seen) == 5 })
	if err != nil {
		t.Fatalf("ContinuousTransfer() error: %v", err)
	}
	if !bytes.Equal(seen, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("frames = %v, want sequences 1..5", seen)
	}
	if drv.streaming {
		t.Error("stream left running")
	}
}

func TestContinuousTransferCallbackError(t *testing.T) {
	drv := newFakeDriver(Capture)
	ch := mustOpenMapped(t, drv, Capture)
	defer ch.Close()

	stop := errors.New("consumer failed")
	err := ch.ContinuousTransfer(func(Frame) error { return stop }, nil)
	if !errors.Is(err, stop) {
		t.Errorf("ContinuousTransfer() error = %v, want %v", err, stop)
	}
	if drv.streaming {
		t.Error("stream left running after callback error")
	}
}

func TestSetControl(t *testing.T) {
	drv := newFakeDriver(Capture)
	ch := mustOpenMapped(t, drv, Capture)

	if err := ch.SetControl(v4l2.CtrlClassImageProc, v4l2.CIDImageProcBase+11, 3); err != nil {
		t.Fatalf("SetControl() error: %v", err)
	}
	if drv.controls[v4l2.CIDImageProcBase+11] != 3 {
		t.Errorf("control value = %d, want 3", drv.controls[v4l2.CIDImageProcBase+11])
	}

	_ = ch.Close()
	if err := ch.SetControl(v4l2.CtrlClassImageProc, v4l2.CIDImageProcBase+11, 0); !errors.Is(err, isp.ErrInvalidArgument) {
		t.Errorf("SetControl() after Close error = %v, want %v", err, isp.ErrInvalidArgument)
	}
}

func TestCloseIdempotent(t *testing.T) {
	drv := newFakeDriver(Capture)
	drv.grant = 2
	ch, err := openFake(t, drv, Capture, FormatStats)
	if err != nil {
		t.Fatal(err)
	}
	if err := ch.MapBuffers(2); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := ch.Close(); err != nil {
			t.Fatalf("Close() #%d error: %v", i+1, err)
		}
	}
	if drv.closed != 1 || drv.unmapped != 2 {
		t.Errorf("closed = %d, unmapped = %d; want 1 and 2", drv.closed, drv.unmapped)
	}
	if _, err := ch.OneShotTransfer(nil); !errors.Is(err, isp.ErrInvalidArgument) {
		t.Errorf("transfer after Close error = %v, want %v", err, isp.ErrInvalidArgument)
	}
}
