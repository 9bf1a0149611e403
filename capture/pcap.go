package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog/log"
)

// pcapDevice - one libpcap handle used for both directions. gopacket serialises reads on the
// handle, so several readers can share it.
type pcapDevice struct {
	name   string
	handle *pcap.Handle
}

func openPcap(ifi *net.Interface, opts Options) (device, error) {
	inactive, err := pcap.NewInactiveHandle(ifi.Name)
	if err != nil {
		return nil, err
	}
	defer inactive.CleanUp()
	if err = inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, err
	}
	if err = inactive.SetPromisc(true); err != nil {
		return nil, err
	}
	if err = inactive.SetTimeout(pollTimeout); err != nil {
		return nil, err
	}
	if err = inactive.SetImmediateMode(true); err != nil {
		return nil, err
	}
	handle, err := inactive.Activate()
	if err != nil {
		return nil, err
	}
	if lt := handle.LinkType(); lt != layers.LinkTypeEthernet {
		handle.Close()
		return nil, fmt.Errorf("unsupported link type %s", lt)
	}
	// Only what arrives from the wire, never what this host (or the forwarder) sends.
	if err = handle.SetDirection(pcap.DirectionIn); err != nil {
		handle.Close()
		return nil, err
	}
	if opts.Filter != "" {
		if err = handle.SetBPFFilter(opts.Filter); err != nil {
			handle.Close()
			return nil, err
		}
		log.Info().Str("interface", ifi.Name).Msgf("BPF filter %s", opts.Filter)
	}
	return &pcapDevice{name: ifi.Name, handle: handle}, nil
}

func (d *pcapDevice) read() ([]byte, func([]byte), error) {
	data, ci, err := d.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, nil, errPollTimeout
	}
	if err != nil {
		return nil, nil, err
	}
	if ci.CaptureLength < ci.Length {
		return nil, nil, fmt.Errorf("%w: captured %d of %d bytes", errTruncated, ci.CaptureLength, ci.Length)
	}
	return data, nil, nil
}

func (d *pcapDevice) write(data []byte) error {
	return d.handle.WritePacketData(data)
}

func (d *pcapDevice) close() error {
	d.handle.Close()
	return nil
}
