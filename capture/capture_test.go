package capture

import (
	"errors"
	"net"
	"testing"

	"l2fwd/common"
	"l2fwd/fwd"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

func TestTxQueue(t *testing.T) {
	var written [][]byte
	q := newTxQueue(3, func(b []byte) error {
		written = append(written, append([]byte(nil), b...))
		return nil
	})

	frame := []byte{1, 2, 3}
	require.Nil(t, q.push(frame, true))
	// The queue keeps its own copy.
	frame[0] = 9
	require.Nil(t, q.push([]byte{4, 5}, true))
	require.Equal(t, 2, q.pending())
	require.Empty(t, written)

	require.Nil(t, q.push([]byte{6}, false))
	require.Equal(t, [][]byte{{1, 2, 3}, {4, 5}, {6}}, written)
	require.Equal(t, 0, q.pending())

	// Full queues flush even when more frames are announced.
	written = nil
	for i := 0; i < 3; i++ {
		require.Nil(t, q.push([]byte{byte(i)}, true))
	}
	require.Len(t, written, 3)

	require.Nil(t, q.push([]byte{7}, true))
	require.False(t, q.stopped())
	require.Nil(t, q.freeze())
	require.True(t, q.stopped())
	require.Equal(t, []byte{7}, written[3])
	require.ErrorIs(t, q.push([]byte{8}, false), ErrQueueStopped)
}

func TestTxQueueWriteError(t *testing.T) {
	boom := errors.New("no buffer space")
	calls := 0
	q := newTxQueue(4, func(b []byte) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	})
	require.Nil(t, q.push([]byte{1}, true))
	require.ErrorIs(t, q.push([]byte{2}, false), boom)
	// The rest of the batch is still written.
	require.Equal(t, 2, calls)
	require.Equal(t, 0, q.pending())
}

func TestOriginOf(t *testing.T) {
	own := net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
	other := net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x03}
	frame := func(dst, src net.HardwareAddr) []byte {
		b := make([]byte, 60)
		copy(b[0:6], dst)
		copy(b[6:12], src)
		return b
	}

	require.Equal(t, fwd.OriginLoopback, originOf(frame(other, own), own))
	require.Equal(t, fwd.OriginLoopback, originOf(frame(own, own), own))
	require.Equal(t, fwd.OriginBroadcast, originOf(frame(net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, other), own))
	require.Equal(t, fwd.OriginMulticast, originOf(frame(net.HardwareAddr{0x01, 0x00, 0x5e, 0x00, 0x00, 0x01}, other), own))
	require.Equal(t, fwd.OriginHost, originOf(frame(own, other), own))
	require.Equal(t, fwd.OriginOtherHost, originOf(frame(common.DstMACTest, other), own))
	require.Equal(t, fwd.OriginOtherHost, originOf([]byte{1, 2, 3}, own))
	// No hardware address, nothing is local.
	require.Equal(t, fwd.OriginOtherHost, originOf(frame(other, other), nil))
}

func TestOutgoingFilter(t *testing.T) {
	raw, err := outgoingFilter(DefaultSnapLen)
	require.Nil(t, err)
	prog, allDecoded := bpf.Disassemble(raw)
	require.True(t, allDecoded)
	require.Equal(t, []bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: packetOutgoing, SkipTrue: 1},
		bpf.RetConstant{Val: DefaultSnapLen},
		bpf.RetConstant{Val: 0},
	}, prog)
}

func TestOptionsValidate(t *testing.T) {
	require.Nil(t, DefaultOptions.Validate())

	for _, o := range []Options{
		{Driver: "netmap", Readers: 1, SnapLen: DefaultSnapLen, Batch: 1},
		{Driver: DriverRaw, Readers: 0, SnapLen: DefaultSnapLen, Batch: 1},
		{Driver: DriverRaw, Readers: 1, SnapLen: 10, Batch: 1},
		{Driver: DriverAFPacket, Readers: 1, SnapLen: DefaultSnapLen, Batch: 0},
	} {
		err := o.Validate()
		require.ErrorIs(t, err, fwd.ErrInvalidSetting)
		var ce *fwd.ConfigurationError
		require.ErrorAs(t, err, &ce)
	}
}

func TestNewHostDefaults(t *testing.T) {
	h := NewHost(Options{})
	require.Equal(t, DefaultOptions, h.Options())

	h = NewHost(Options{Driver: DriverRaw, Readers: 4})
	require.Equal(t, DriverRaw, h.Options().Driver)
	require.Equal(t, 4, h.Options().Readers)
	require.Equal(t, DefaultBatch, h.Options().Batch)
}

func TestHostAttach(t *testing.T) {
	ifas, err := net.Interfaces()
	require.Nil(t, err)
	if len(ifas) == 0 {
		t.Skip("no network interfaces")
	}
	name := ifas[0].Name

	h := NewHost(DefaultOptions)
	h.open = func(ifi *net.Interface, opts Options) (device, error) {
		return newTestDevice(), nil
	}

	p, err := h.Attach(name)
	require.Nil(t, err)
	require.Equal(t, name, p.Name())

	_, err = h.Attach(name)
	require.ErrorIs(t, err, fwd.ErrAlreadyAttached)
	var ae *fwd.AttachError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, name, ae.Interface)

	require.Nil(t, p.Detach())
	p, err = h.Attach(name)
	require.Nil(t, err)
	require.Nil(t, p.Detach())
}

func TestHostAttachErrors(t *testing.T) {
	h := NewHost(DefaultOptions)
	_, err := h.Attach("nosuchif0")
	require.ErrorIs(t, err, common.ErrNoInterfaceFound)

	ifas, err := net.Interfaces()
	require.Nil(t, err)
	if len(ifas) == 0 {
		t.Skip("no network interfaces")
	}
	boom := errors.New("permission denied")
	h.open = func(ifi *net.Interface, opts Options) (device, error) {
		return nil, boom
	}
	_, err = h.Attach(ifas[0].Name)
	require.ErrorIs(t, err, boom)
	// A failed open leaves the interface free for the next attempt.
	h.open = func(ifi *net.Interface, opts Options) (device, error) {
		return newTestDevice(), nil
	}
	p, err := h.Attach(ifas[0].Name)
	require.Nil(t, err)
	require.Nil(t, p.Detach())
}

func TestHostResolveUnknown(t *testing.T) {
	_, _, err := NewHost(DefaultOptions).ResolveLocalAddress("nosuchif0")
	require.ErrorIs(t, err, common.ErrNoInterfaceFound)
}
