package capture

import (
	"fmt"
	"net"
	"sync"
	"time"

	"l2fwd/fwd"

	"github.com/mdlayher/raw"
	"github.com/rs/zerolog/log"
)

// ethPAll - every protocol, the socket sees all frames of the interface.
const ethPAll = 0x0003

// rawDevice is an AF_PACKET socket. Receive buffers come from a pool and go back to it once
// the frame has been transmitted or dropped.
type rawDevice struct {
	name string
	conn *raw.Conn
	pool sync.Pool
}

func openRaw(ifi *net.Interface, opts Options) (device, error) {
	conn, err := raw.ListenPacket(ifi, ethPAll, nil)
	if err != nil {
		return nil, err
	}
	filter, err := outgoingFilter(opts.SnapLen)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err = conn.SetBPF(filter); err != nil {
		conn.Close()
		return nil, err
	}
	if err = conn.SetPromiscuous(true); err != nil {
		conn.Close()
		return nil, err
	}
	if opts.Filter != "" {
		log.Warn().Str("interface", ifi.Name).Msg("BPF filter expressions are only supported by the pcap driver, ignoring")
	}

	// Sized to snaplen, not the MTU: with GRO/LRO the socket sees coalesced frames well past it.
	d := &rawDevice{name: ifi.Name, conn: conn}
	d.pool.New = func() interface{} {
		b := make([]byte, opts.SnapLen)
		return &b
	}
	return d, nil
}

func (d *rawDevice) read() ([]byte, func([]byte), error) {
	bp := d.pool.Get().(*[]byte)
	buf := *bp
	if err := d.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		d.pool.Put(bp)
		return nil, nil, err
	}
	n, _, err := d.conn.ReadFrom(buf)
	if err != nil {
		d.pool.Put(bp)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, errPollTimeout
		}
		return nil, nil, err
	}
	// The socket cuts frames to the buffer silently, a full buffer may be a cut frame.
	if n >= len(buf) {
		d.pool.Put(bp)
		return nil, nil, fmt.Errorf("%w: filled the %d byte buffer", errTruncated, len(buf))
	}
	return buf[:n], d.put, nil
}

func (d *rawDevice) put(b []byte) {
	b = b[:cap(b)]
	d.pool.Put(&b)
}

func (d *rawDevice) write(data []byte) error {
	if len(data) < fwd.EthHeaderLen {
		return errShortFrame
	}
	_, err := d.conn.WriteTo(data, &raw.Addr{HardwareAddr: net.HardwareAddr(data[0:6])})
	return err
}

func (d *rawDevice) close() error {
	if err := d.conn.SetPromiscuous(false); err != nil {
		log.Warn().Err(err).Str("interface", d.name).Msg("Failed to turn promiscuous mode off")
	}
	return d.conn.Close()
}
