package fwd

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
)

const (
	EthHeaderLen     = 14
	IPv4MinHeaderLen = 20
)

// Origin is the userspace equivalent of the kernel's packet type for a received frame.
type Origin uint8

const (
	OriginHost Origin = iota
	OriginBroadcast
	OriginMulticast
	OriginOtherHost
	OriginOutgoing
	OriginLoopback
)

// Loopback - the frame was generated locally (by this host, or by the forwarder itself)
// and must never be forwarded.
func (o Origin) Loopback() bool {
	return o == OriginLoopback || o == OriginOutgoing
}

func (o Origin) String() string {
	switch o {
	case OriginHost:
		return "host"
	case OriginBroadcast:
		return "broadcast"
	case OriginMulticast:
		return "multicast"
	case OriginOtherHost:
		return "otherhost"
	case OriginOutgoing:
		return "outgoing"
	case OriginLoopback:
		return "loopback"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// ChecksumState tracks the transport checksum after the headers were touched.
type ChecksumState uint8

const (
	ChecksumUntouched ChecksumState = iota
	// ChecksumStale - addresses changed, the transport checksum needs a full recomputation.
	ChecksumStale
	ChecksumRecomputed
)

// Frame is a received Ethernet frame, link-layer header included. The byte buffer is owned by
// exactly one processing path at a time. Accessors return views into the buffer, so writes
// through them mutate the frame in place.
type Frame struct {
	Origin     Origin
	L4Checksum ChecksumState
	data       []byte
	release    func([]byte)
}

// NewFrame wraps a buffer. release, if not nil, gets the buffer back when the frame is released.
func NewFrame(data []byte, origin Origin, release func([]byte)) *Frame {
	return &Frame{data: data, Origin: origin, release: release}
}

func (f *Frame) Bytes() []byte {
	return f.data
}

func (f *Frame) Len() int {
	return len(f.data)
}

// Release hands the buffer back. The frame must not be used afterwards.
func (f *Frame) Release() {
	if f.release != nil && f.data != nil {
		f.release(f.data)
	}
	f.release = nil
	f.data = nil
}

func (f *Frame) Released() bool {
	return f.data == nil
}

func (f *Frame) hasEthernet() bool {
	return len(f.data) >= EthHeaderLen
}

func (f *Frame) DstMAC() net.HardwareAddr {
	if !f.hasEthernet() {
		return nil
	}
	return net.HardwareAddr(f.data[0:6:6])
}

func (f *Frame) SrcMAC() net.HardwareAddr {
	if !f.hasEthernet() {
		return nil
	}
	return net.HardwareAddr(f.data[6:12:12])
}

// EtherType of the outer header. VLAN tagged frames report the tag type, not the inner one.
func (f *Frame) EtherType() layers.EthernetType {
	if !f.hasEthernet() {
		return 0
	}
	return layers.EthernetType(binary.BigEndian.Uint16(f.data[12:14]))
}

// IPv4 returns the IPv4 header when the frame carries one that is complete and well formed.
// No other protocol is ever parsed.
func (f *Frame) IPv4() (IPv4Header, bool) {
	if f.EtherType() != layers.EthernetTypeIPv4 || len(f.data) < EthHeaderLen+IPv4MinHeaderLen {
		return nil, false
	}
	h := IPv4Header(f.data[EthHeaderLen:])
	if h.Version() != 4 || h.IHL() < 5 {
		return nil, false
	}
	end := EthHeaderLen + h.Len()
	if len(f.data) < end {
		return nil, false
	}
	return IPv4Header(f.data[EthHeaderLen:end:end]), true
}

// IPv4Payload is everything after the IPv4 header, bounded by the header's total length.
func (f *Frame) IPv4Payload() ([]byte, bool) {
	h, ok := f.IPv4()
	if !ok {
		return nil, false
	}
	start := EthHeaderLen + h.Len()
	end := EthHeaderLen + int(h.TotalLength())
	if end < start || end > len(f.data) {
		return nil, false
	}
	return f.data[start:end:end], true
}

func (f *Frame) String() string {
	if !f.hasEthernet() {
		return fmt.Sprintf("Frame[runt len=%d]", len(f.data))
	}
	if h, ok := f.IPv4(); ok {
		return fmt.Sprintf("Frame[%s -> %s, %s -> %s, %s, len=%d, %s]",
			f.SrcMAC(), f.DstMAC(), h.SrcIP(), h.DstIP(), h.Protocol(), len(f.data), f.Origin)
	}
	return fmt.Sprintf("Frame[%s -> %s, type=%s, len=%d, %s]", f.SrcMAC(), f.DstMAC(), f.EtherType(), len(f.data), f.Origin)
}

// IPv4Header is a view over the header bytes of an IPv4 packet, options included.
type IPv4Header []byte

func (h IPv4Header) Version() uint8 {
	return h[0] >> 4
}

func (h IPv4Header) IHL() uint8 {
	return h[0] & 0x0f
}

// Len is the declared header length in bytes.
func (h IPv4Header) Len() int {
	return int(h.IHL()) * 4
}

func (h IPv4Header) TotalLength() uint16 {
	return binary.BigEndian.Uint16(h[2:4])
}

// Fragmented - more fragments set, or a non zero fragment offset.
func (h IPv4Header) Fragmented() bool {
	return h[6]&0x20 != 0 || binary.BigEndian.Uint16(h[6:8])&0x1fff != 0
}

func (h IPv4Header) TTL() uint8 {
	return h[8]
}

func (h IPv4Header) Protocol() layers.IPProtocol {
	return layers.IPProtocol(h[9])
}

func (h IPv4Header) Checksum() uint16 {
	return binary.BigEndian.Uint16(h[10:12])
}

func (h IPv4Header) setChecksum(c uint16) {
	binary.BigEndian.PutUint16(h[10:12], c)
}

func (h IPv4Header) SrcIP() net.IP {
	return net.IP(h[12:16:16])
}

func (h IPv4Header) DstIP() net.IP {
	return net.IP(h[16:20:20])
}

// Valid - the header checksum verifies, the ones complement sum over the header is zero.
func (h IPv4Header) Valid() bool {
	return ipv4Checksum(h[:h.Len()]) == 0
}
