package fwd

import (
	"fmt"
	"net"
	"strings"
)

// IfNameMax is the longest interface name Linux accepts (IFNAMSIZ minus the terminator).
const IfNameMax = 15

// Descriptor is one parsed interface parameter, "eth1" or "eth1 10.0.0.5 aa:bb:cc:dd:ee:ff".
type Descriptor struct {
	Name      string
	DNAT      bool
	TargetIP  net.IP
	TargetMAC net.HardwareAddr
}

// ParseDescriptor accepts an interface name optionally followed by a DNAT target IPv4 and MAC
// address. Commas are accepted as separators too. A target is all or nothing: four octets and
// six MAC bytes, anything in between fails with ErrIncompleteTarget.
func ParseDescriptor(s string) (d Descriptor, err error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 {
		return d, &ConfigurationError{Err: fmt.Errorf("%w: empty interface descriptor", ErrUnknownInterface)}
	}
	d.Name = fields[0]
	if len(d.Name) > IfNameMax {
		return d, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: name longer than %d bytes", ErrUnknownInterface, IfNameMax)}
	}
	if len(fields) == 1 {
		return d, nil
	}
	if len(fields) != 3 {
		return d, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: got %q", ErrIncompleteTarget, s)}
	}
	ip := net.ParseIP(fields[1]).To4()
	if ip == nil {
		return d, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: bad IPv4 address %q", ErrIncompleteTarget, fields[1])}
	}
	mac, err := net.ParseMAC(fields[2])
	if err != nil || len(mac) != 6 {
		return d, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: bad MAC address %q", ErrIncompleteTarget, fields[2])}
	}
	d.DNAT = true
	d.TargetIP = ip
	d.TargetMAC = mac
	return d, nil
}

func (d Descriptor) String() string {
	if !d.DNAT {
		return d.Name
	}
	return fmt.Sprintf("%s %s %s", d.Name, d.TargetIP, d.TargetMAC)
}
