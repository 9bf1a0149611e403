package fwd

import (
	"context"
	"net"
)

// Side - which of the two bound interfaces a frame arrived on.
type Side int

const (
	SideA Side = iota
	SideB
)

// Peer is the fixed A<->B mapping. Frames arriving on one side always leave on the other.
func (s Side) Peer() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Action tells the delivering port what happened to a frame.
type Action int

const (
	// Consumed - the engine owns the frame now, either transmitted or released.
	Consumed Action = iota
	// PassThrough - the engine did not touch the frame, the port keeps ownership.
	PassThrough
)

func (a Action) String() string {
	if a == PassThrough {
		return "pass-through"
	}
	return "consumed"
}

// Link - the transmit half of an attached interface. Interface to make it easier to test with.
// Both transmit paths take ownership of the frame, whatever the outcome.
type Link interface {
	Name() string
	HardwareAddr() net.HardwareAddr
	// Transmit - the normal single frame path.
	Transmit(f *Frame) error
	// TransmitFast - the batching path. more=true means another frame follows shortly,
	// so the link may hold the frame back until a call with more=false.
	TransmitFast(f *Frame, more bool) error
	// Stopped - the fast path queue is frozen or stopped and will not take frames.
	Stopped() bool
}

// DeliverFunc is called by a port for every received frame.
type DeliverFunc func(f *Frame) Action

// Port - an interface the forwarder is attached to.
type Port interface {
	Link
	// Serve delivers received frames until ctx is done or the port is detached.
	Serve(ctx context.Context, deliver DeliverFunc) error
	// Detach reverses Attach. Safe to call more than once.
	Detach() error
}

// Host - the capabilities the forwarder needs from the machine it runs on.
type Host interface {
	Attach(name string) (Port, error)
	// ResolveLocalAddress returns the IPv4 and hardware address configured on an interface.
	// The IP is nil when the interface has no IPv4 address.
	ResolveLocalAddress(name string) (net.IP, net.HardwareAddr, error)
}

// StatsSink receives the frame count every stats interval.
type StatsSink interface {
	LogStat(count uint64)
}
