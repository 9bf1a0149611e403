package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"l2fwd/common"
	"l2fwd/fwd"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

var ownMAC = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
}

// testDevice feeds frames from a channel and records writes.
type testDevice struct {
	in       chan []byte
	readErr  chan error
	lock     sync.Mutex
	written  [][]byte
	closed   int
	released int
}

func newTestDevice() *testDevice {
	return &testDevice{in: make(chan []byte, 16), readErr: make(chan error, 1)}
}

func (d *testDevice) read() ([]byte, func([]byte), error) {
	select {
	case b := <-d.in:
		return b, d.put, nil
	case err := <-d.readErr:
		return nil, nil, err
	case <-time.After(10 * time.Millisecond):
		return nil, nil, errPollTimeout
	}
}

func (d *testDevice) put([]byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.released++
}

func (d *testDevice) write(data []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.written = append(d.written, append([]byte(nil), data...))
	return nil
}

func (d *testDevice) close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed++
	return nil
}

func (d *testDevice) writes() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.written)
}

func (d *testDevice) releases() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.released
}

func newTestPort(dev *testDevice, readers int) (*port, *bool) {
	released := false
	opts := DefaultOptions
	opts.Readers = readers
	p := newPort(&net.Interface{Name: "test0", HardwareAddr: ownMAC}, dev, opts, func() { released = true })
	return p, &released
}

func TestPortServe(t *testing.T) {
	dev := newTestDevice()
	p, _ := newTestPort(dev, 2)

	var lock sync.Mutex
	origins := []fwd.Origin{}
	deliver := func(f *fwd.Frame) fwd.Action {
		lock.Lock()
		defer lock.Unlock()
		origins = append(origins, f.Origin)
		if f.Origin.Loopback() {
			return fwd.PassThrough
		}
		f.Release()
		return fwd.Consumed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Serve(ctx, deliver) }()

	dev.in <- common.CreateFrame(t)
	own := common.CreateFrame(t)
	copy(own[6:12], ownMAC)
	dev.in <- own

	require.Eventually(t, func() bool { return dev.releases() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Nil(t, <-done)

	lock.Lock()
	defer lock.Unlock()
	require.ElementsMatch(t, []fwd.Origin{fwd.OriginOtherHost, fwd.OriginLoopback}, origins)
}

func TestPortServeReadError(t *testing.T) {
	dev := newTestDevice()
	p, _ := newTestPort(dev, 3)
	boom := errors.New("socket gone")
	dev.readErr <- boom

	done := make(chan error)
	go func() { done <- p.Serve(context.Background(), func(f *fwd.Frame) fwd.Action { return fwd.Consumed }) }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after a read error")
	}
}

func TestPortTransmit(t *testing.T) {
	dev := newTestDevice()
	p, _ := newTestPort(dev, 1)

	f := fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil)
	require.Nil(t, p.Transmit(f))
	require.True(t, f.Released())
	require.Equal(t, 1, dev.writes())

	require.Nil(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), true))
	require.Nil(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), true))
	require.Equal(t, 1, dev.writes())
	require.Nil(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), false))
	require.Equal(t, 4, dev.writes())
	require.False(t, p.Stopped())
}

func TestPortFlushesHeldFrames(t *testing.T) {
	dev := newTestDevice()
	p, _ := newTestPort(dev, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Serve(ctx, func(f *fwd.Frame) fwd.Action { return fwd.Consumed })

	require.Nil(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), true))
	require.Eventually(t, func() bool { return dev.writes() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPortDetach(t *testing.T) {
	dev := newTestDevice()
	p, released := newTestPort(dev, 2)

	done := make(chan error)
	go func() { done <- p.Serve(context.Background(), func(f *fwd.Frame) fwd.Action { return fwd.Consumed }) }()

	require.Nil(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), true))
	require.Nil(t, p.Detach())
	require.Nil(t, <-done)
	require.Nil(t, p.Detach())

	// Held frames went out before the device closed, exactly once.
	require.Equal(t, 1, dev.writes())
	require.Equal(t, 1, dev.closed)
	require.True(t, *released)
	require.True(t, p.Stopped())

	require.ErrorIs(t, p.Transmit(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil)), ErrDetached)
	require.ErrorIs(t, p.TransmitFast(fwd.NewFrame(common.CreateFrame(t), fwd.OriginOtherHost, nil), false), ErrQueueStopped)
	require.Nil(t, p.Serve(context.Background(), nil))
}

func TestPortDropsTruncatedFrames(t *testing.T) {
	dev := newTestDevice()
	p, _ := newTestPort(dev, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- p.Serve(ctx, func(f *fwd.Frame) fwd.Action {
			p.Transmit(f)
			return fwd.Consumed
		})
	}()

	dev.readErr <- fmt.Errorf("%w: captured 1518 of 64000 bytes", errTruncated)
	require.Eventually(t, func() bool { return p.Truncated() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, dev.writes())

	// The reader keeps going after a truncated frame.
	dev.in <- common.CreateFrame(t)
	require.Eventually(t, func() bool { return dev.writes() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Nil(t, <-done)
	require.Equal(t, uint64(1), p.Truncated())
}

func TestPortKeepsOrderThroughBursts(t *testing.T) {
	in, out := newTestDevice(), newTestDevice()
	pin, _ := newTestPort(in, 1)
	pout, _ := newTestPort(out, 1)

	plain := func(name string) fwd.Binding {
		d, err := fwd.ParseDescriptor(name)
		require.Nil(t, err)
		b, err := fwd.NewBinding(d, nil, nil)
		require.Nil(t, err)
		return b
	}
	settings := fwd.DefaultSettings
	settings.Burst = 4
	e, err := fwd.NewEngine(fwd.InterfacePair{
		Bindings: [2]fwd.Binding{plain("test0"), plain("test1")},
		Links:    [2]fwd.Link{pin, pout},
	}, settings, nil)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pin.Serve(ctx, func(f *fwd.Frame) fwd.Action { return e.OnFrame(f, fwd.SideA) })
	// Only the flusher runs on the egress port, nothing is fed to its device.
	go pout.Serve(ctx, func(f *fwd.Frame) fwd.Action { return fwd.Consumed })

	sent := [][]byte{}
	for i := 0; i < 10; i++ {
		data := common.CreateFrameIP(t, net.IPv4(172, 16, 0, byte(i+1)), net.IPv4(192, 168, 1, 1))
		sent = append(sent, append([]byte(nil), data...))
		in.in <- data
	}

	// Two full bursts go out on their own, the last two frames with the periodic flush.
	require.Eventually(t, func() bool { return out.writes() == len(sent) }, time.Second, 10*time.Millisecond)
	out.lock.Lock()
	defer out.lock.Unlock()
	require.Equal(t, sent, out.written)
	require.Equal(t, 0, in.writes())
}
