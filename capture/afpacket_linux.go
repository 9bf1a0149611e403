package capture

import (
	"fmt"
	"net"
	"os"

	"github.com/google/gopacket/afpacket"
	"github.com/rs/zerolog/log"
)

// ringSizeMB is the memory given to the receive ring of each interface.
const ringSizeMB = 8

// afpacketDevice is a TPACKET ring. ReadPacketData copies out of the ring, so frames stay
// valid after the ring slot is reused.
type afpacketDevice struct {
	tp *afpacket.TPacket
}

// afpacketComputeSize - frames are a page multiple able to hold snaplen, 128 frames per block.
func afpacketComputeSize(targetSizeMB, snaplen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if snaplen < pageSize {
		frameSize = pageSize / (pageSize / snaplen)
	} else {
		frameSize = (snaplen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = (targetSizeMB * 1024 * 1024) / blockSize
	if numBlocks == 0 {
		return 0, 0, 0, fmt.Errorf("ring of %dMB too small for snaplen %d", targetSizeMB, snaplen)
	}
	return
}

func openAFPacket(ifi *net.Interface, opts Options) (device, error) {
	frameSize, blockSize, numBlocks, err := afpacketComputeSize(ringSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifi.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(pollTimeout),
	)
	if err != nil {
		return nil, err
	}
	filter, err := outgoingFilter(opts.SnapLen)
	if err != nil {
		tp.Close()
		return nil, err
	}
	if err = tp.SetBPF(filter); err != nil {
		tp.Close()
		return nil, err
	}
	if opts.Filter != "" {
		log.Warn().Str("interface", ifi.Name).Msg("BPF filter expressions are only supported by the pcap driver, ignoring")
	}
	log.Debug().Str("interface", ifi.Name).Msgf("TPACKET ring frame %d block %d blocks %d", frameSize, blockSize, numBlocks)
	return &afpacketDevice{tp: tp}, nil
}

func (d *afpacketDevice) read() ([]byte, func([]byte), error) {
	data, ci, err := d.tp.ReadPacketData()
	if err == afpacket.ErrTimeout {
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

func (d *afpacketDevice) write(data []byte) error {
	return d.tp.WritePacketData(data)
}

func (d *afpacketDevice) close() error {
	d.tp.Close()
	return nil
}
