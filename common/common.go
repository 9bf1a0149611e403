package common

import (
	"errors"
	"net"
)

var (
	ErrNoInterfaceFound = errors.New("could not find interface with that name")
)

// GetInterface finds an interface by name.
func GetInterface(name string) (*net.Interface, error) {
	ifas, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifas {
		if ifas[i].Name == name {
			return &ifas[i], nil
		}
	}
	return nil, ErrNoInterfaceFound
}

// GetLocalAddr returns the IPv4 address and hardware address currently configured on an interface.
// When several IPv4 addresses are configured the last one listed wins. The IP is nil when
// the interface has no IPv4 address at all, which is not an error here.
func GetLocalAddr(name string) (net.IP, net.HardwareAddr, error) {
	ifa, err := GetInterface(name)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := ifa.Addrs()
	if err != nil {
		return nil, nil, err
	}
	return LastIPv4Addr(addrs), ifa.HardwareAddr, nil
}

// LastIPv4Addr picks the last IPv4 address out of an interface address list.
func LastIPv4Addr(addrs []net.Addr) net.IP {
	var last net.IP
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		// "If ip is not an IPv4 address, To4 returns nil."
		if ip4 := ip.To4(); ip4 != nil {
			last = ip4
		}
	}
	return last
}
