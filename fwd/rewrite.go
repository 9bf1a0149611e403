package fwd

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"
)

// Rewrite applies DNAT to an IPv4 frame in place: destination IP and MAC become the binding's
// target, source MAC and IP become the binding's own interface addresses. The IPv4 header
// checksum is recomputed over the declared header length, options included. Nothing else in
// the frame changes; the transport checksum is only marked stale.
//
// Rewrite returns false, leaving the frame untouched, when the frame has no usable IPv4 header
// or the binding has DNAT disabled. The classifier filters those before they get here.
func Rewrite(f *Frame, b *Binding) bool {
	h, ok := f.IPv4()
	if !ok || !b.DNAT() {
		return false
	}
	// The order matters, the checksum must see the final header bytes.
	copy(h.DstIP(), b.targetIP[:])
	copy(f.DstMAC(), b.targetMAC[:])
	copy(f.SrcMAC(), b.localMAC[:])
	copy(h.SrcIP(), b.localIP[:])

	f.L4Checksum = ChecksumStale
	h.setChecksum(0)
	h.setChecksum(ipv4Checksum(h))
	return true
}

// RepairTransportChecksum recomputes the TCP or UDP checksum of a rewritten frame against its
// new pseudo header. Fragments, other protocols and UDP datagrams sent without a checksum are
// left alone. Returns true when a checksum was written.
func RepairTransportChecksum(f *Frame) bool {
	h, ok := f.IPv4()
	if !ok || h.Fragmented() {
		return false
	}
	segment, ok := f.IPv4Payload()
	if !ok {
		return false
	}
	var field []byte
	switch h.Protocol() {
	case layers.IPProtocolTCP:
		if len(segment) < 20 {
			return false
		}
		field = segment[16:18]
	case layers.IPProtocolUDP:
		if len(segment) < 8 || binary.BigEndian.Uint16(segment[6:8]) == 0 {
			return false
		}
		field = segment[6:8]
	default:
		return false
	}
	binary.BigEndian.PutUint16(field, 0)
	sum := transportChecksum(h.SrcIP(), h.DstIP(), h.Protocol(), segment)
	if sum == 0 && h.Protocol() == layers.IPProtocolUDP {
		sum = 0xffff
	}
	binary.BigEndian.PutUint16(field, sum)
	f.L4Checksum = ChecksumRecomputed
	return true
}
