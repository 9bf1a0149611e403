/*
Package capture attaches the forwarder to real interfaces.

Three drivers are available: pcap (libpcap through gopacket), raw (an AF_PACKET socket through
mdlayher/raw) and afpacket (gopacket's TPACKET ring). All of them capture promiscuously, skip
frames the host sent itself and write whole Ethernet frames back out.
*/
package capture

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"l2fwd/common"
	"l2fwd/fwd"

	"github.com/rs/zerolog/log"
)

const (
	DriverPcap     = "pcap"
	DriverRaw      = "raw"
	DriverAFPacket = "afpacket"

	DefaultSnapLen = 65535
	DefaultBatch   = 64

	// pollTimeout bounds every blocking read, so readers notice a detach.
	pollTimeout = 100 * time.Millisecond
	// flushPeriod - frames held back in a burst never wait longer than this.
	flushPeriod = pollTimeout
)

var (
	errPollTimeout = errors.New("poll timeout")
	// errTruncated - the frame was longer than the capture buffer. The device has already
	// taken the buffer back.
	errTruncated = errors.New("frame truncated")
)

// Options select and tune the capture driver.
type Options struct {
	Driver string `yaml:"driver"`
	// Readers is the number of concurrent delivery goroutines per interface.
	Readers int `yaml:"readers"`
	SnapLen int `yaml:"snaplen"`
	// Filter is an optional BPF expression, pcap driver only.
	Filter string `yaml:"filter"`
	// Batch is the fast path queue depth.
	Batch int `yaml:"batch"`
}

var DefaultOptions = Options{
	Driver:  DriverPcap,
	Readers: 1,
	SnapLen: DefaultSnapLen,
	Batch:   DefaultBatch,
}

func (o Options) Validate() error {
	switch o.Driver {
	case DriverPcap, DriverRaw, DriverAFPacket:
	default:
		return &fwd.ConfigurationError{Err: fmt.Errorf("%w: unknown capture driver %q", fwd.ErrInvalidSetting, o.Driver)}
	}
	if o.Readers < 1 {
		return &fwd.ConfigurationError{Err: fmt.Errorf("%w: readers must be at least 1, got %d", fwd.ErrInvalidSetting, o.Readers)}
	}
	if o.SnapLen < fwd.EthHeaderLen {
		return &fwd.ConfigurationError{Err: fmt.Errorf("%w: snaplen %d too small", fwd.ErrInvalidSetting, o.SnapLen)}
	}
	if o.Batch < 1 {
		return &fwd.ConfigurationError{Err: fmt.Errorf("%w: batch must be at least 1, got %d", fwd.ErrInvalidSetting, o.Batch)}
	}
	return nil
}

// device is the driver specific half of a port.
type device interface {
	// read returns the next received frame. release, if not nil, takes the buffer back once
	// the frame is done with. errPollTimeout means nothing arrived within pollTimeout,
	// errTruncated that a frame arrived but did not fit and was dropped.
	read() (data []byte, release func([]byte), err error)
	write(data []byte) error
	close() error
}

// Host implements fwd.Host on the local machine.
type Host struct {
	opts     Options
	lock     sync.Mutex
	attached map[string]struct{}
	open     func(ifi *net.Interface, opts Options) (device, error)
}

// NewHost - zero option fields fall back to DefaultOptions.
func NewHost(opts Options) *Host {
	if opts.Driver == "" {
		opts.Driver = DefaultOptions.Driver
	}
	if opts.Readers == 0 {
		opts.Readers = DefaultOptions.Readers
	}
	if opts.SnapLen == 0 {
		opts.SnapLen = DefaultOptions.SnapLen
	}
	if opts.Batch == 0 {
		opts.Batch = DefaultOptions.Batch
	}
	h := &Host{opts: opts, attached: map[string]struct{}{}}
	switch opts.Driver {
	case DriverRaw:
		h.open = openRaw
	case DriverAFPacket:
		h.open = openAFPacket
	default:
		h.open = openPcap
	}
	return h
}

func (h *Host) Options() Options {
	return h.opts
}

func (h *Host) ResolveLocalAddress(name string) (net.IP, net.HardwareAddr, error) {
	return common.GetLocalAddr(name)
}

// Attach opens the interface with the configured driver. An interface can only be attached once.
func (h *Host) Attach(name string) (fwd.Port, error) {
	if err := h.opts.Validate(); err != nil {
		return nil, err
	}
	ifi, err := common.GetInterface(name)
	if err != nil {
		return nil, &fwd.AttachError{Interface: name, Err: err}
	}
	if err = h.claim(name); err != nil {
		return nil, &fwd.AttachError{Interface: name, Err: err}
	}
	dev, err := h.open(ifi, h.opts)
	if err != nil {
		h.unclaim(name)
		return nil, &fwd.AttachError{Interface: name, Err: err}
	}
	log.Info().Str("interface", name).Str("driver", h.opts.Driver).Msgf("Attached, hwaddr %s mtu %d", ifi.HardwareAddr, ifi.MTU)
	return newPort(ifi, dev, h.opts, func() { h.unclaim(name) }), nil
}

func (h *Host) claim(name string) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.attached[name]; ok {
		return fwd.ErrAlreadyAttached
	}
	h.attached[name] = struct{}{}
	return nil
}

func (h *Host) unclaim(name string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.attached, name)
}
