package fwd

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket/layers"
)

func checksumSum(data []byte, sum uint32) uint32 {
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	return sum
}

func checksumFold(sum uint32) uint16 {
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

// ipv4Checksum is the internet checksum over data. Run over a header whose checksum field
// is zero it yields the value to store; run over a complete header it yields zero when valid.
func ipv4Checksum(data []byte) uint16 {
	return checksumFold(checksumSum(data, 0))
}

// transportChecksum computes a TCP or UDP checksum over segment with the IPv4 pseudo header.
// The checksum field inside segment must be zeroed by the caller.
func transportChecksum(src, dst net.IP, proto layers.IPProtocol, segment []byte) uint16 {
	var sum uint32
	sum = checksumSum(src.To4(), sum)
	sum = checksumSum(dst.To4(), sum)
	sum += uint32(proto)
	sum += uint32(len(segment))
	return checksumFold(checksumSum(segment, sum))
}
