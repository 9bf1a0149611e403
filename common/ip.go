package common

import (
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotIPv4     = errors.New("not an IPv4 address")
	ErrNotEthernet = errors.New("not a 6 byte ethernet address")
)

// IPv4Array copies an IPv4 address into a fixed size array.
func IPv4Array(ip net.IP) (out [4]byte, err error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return out, fmt.Errorf("%w: %s", ErrNotIPv4, ip)
	}
	copy(out[:], ip4)
	return
}

// MACArray copies an EUI-48 hardware address into a fixed size array.
func MACArray(hw net.HardwareAddr) (out [6]byte, err error) {
	if len(hw) != 6 {
		return out, fmt.Errorf("%w: %s", ErrNotEthernet, hw)
	}
	copy(out[:], hw)
	return
}
