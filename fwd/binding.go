package fwd

import (
	"fmt"
	"net"

	"l2fwd/common"
)

// Binding is the translation configuration of one side. It is built once at setup and never
// changes afterwards, so it is read without locking from every delivery context.
type Binding struct {
	iface     string
	dnat      bool
	targetIP  [4]byte
	targetMAC [6]byte
	localIP   [4]byte
	localMAC  [6]byte
}

// NewBinding builds a binding from a parsed descriptor and the address currently configured on
// the interface. localIP may be nil for a plain layer 2 side, a DNAT side requires it.
func NewBinding(d Descriptor, localIP net.IP, localMAC net.HardwareAddr) (b Binding, err error) {
	b.iface = d.Name
	if !d.DNAT {
		return b, nil
	}
	if b.targetIP, err = common.IPv4Array(d.TargetIP); err != nil {
		return Binding{}, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: %v", ErrIncompleteTarget, err)}
	}
	if b.targetMAC, err = common.MACArray(d.TargetMAC); err != nil {
		return Binding{}, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: %v", ErrIncompleteTarget, err)}
	}
	if localIP.To4() == nil {
		return Binding{}, &ConfigurationError{Interface: d.Name, Err: ErrMissingLocalAddress}
	}
	b.localIP, _ = common.IPv4Array(localIP)
	if b.localMAC, err = common.MACArray(localMAC); err != nil {
		return Binding{}, &ConfigurationError{Interface: d.Name, Err: err}
	}
	b.dnat = true
	return b, nil
}

func (b *Binding) Interface() string {
	return b.iface
}

func (b *Binding) DNAT() bool {
	return b.dnat
}

func (b *Binding) TargetIP() net.IP {
	return net.IPv4(b.targetIP[0], b.targetIP[1], b.targetIP[2], b.targetIP[3]).To4()
}

func (b *Binding) TargetMAC() net.HardwareAddr {
	return append(net.HardwareAddr(nil), b.targetMAC[:]...)
}

func (b *Binding) LocalIP() net.IP {
	return net.IPv4(b.localIP[0], b.localIP[1], b.localIP[2], b.localIP[3]).To4()
}

func (b *Binding) LocalMAC() net.HardwareAddr {
	return append(net.HardwareAddr(nil), b.localMAC[:]...)
}

func (b *Binding) String() string {
	if !b.dnat {
		return fmt.Sprintf("%s (layer 2 forward)", b.iface)
	}
	return fmt.Sprintf("%s (DNAT to %s %s, SNAT from %s %s)", b.iface, b.TargetIP(), b.TargetMAC(), b.LocalIP(), b.LocalMAC())
}

// InterfacePair is the fixed bidirectional mapping the engine forwards between.
type InterfacePair struct {
	Bindings [2]Binding
	Links    [2]Link
}
