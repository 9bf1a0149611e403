package capture

import (
	"bytes"
	"net"

	"l2fwd/fwd"

	"github.com/mdlayher/ethernet"
)

// originOf tags a received frame the way the kernel sets the packet type. Frames carrying the
// interface's own source address were generated on this host.
func originOf(data []byte, own net.HardwareAddr) fwd.Origin {
	if len(data) < 12 {
		return fwd.OriginOtherHost
	}
	dst, src := data[0:6], data[6:12]
	switch {
	case len(own) == 6 && bytes.Equal(src, own):
		return fwd.OriginLoopback
	case bytes.Equal(dst, ethernet.Broadcast):
		return fwd.OriginBroadcast
	case dst[0]&0x01 != 0:
		return fwd.OriginMulticast
	case len(own) == 6 && bytes.Equal(dst, own):
		return fwd.OriginHost
	}
	return fwd.OriginOtherHost
}
