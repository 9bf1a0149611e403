//go:build !linux
// +build !linux

package capture

import (
	"errors"
	"net"
)

func openAFPacket(ifi *net.Interface, opts Options) (device, error) {
	return nil, errors.New("the afpacket driver is only available on linux")
}
