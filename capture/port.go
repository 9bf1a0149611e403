package capture

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"l2fwd/fwd"

	"github.com/rs/zerolog/log"
)

var (
	ErrDetached   = errors.New("port detached")
	errShortFrame = errors.New("frame shorter than an ethernet header")
)

// port is an attached interface: a device plus the fast path queue in front of its writes.
type port struct {
	ifi     *net.Interface
	dev     device
	readers int
	queue   *txQueue
	release func()

	// truncated counts frames dropped because they did not fit the capture buffer.
	truncated atomic.Uint64

	lock      sync.Mutex
	detached  atomic.Bool
	done      chan struct{}
	serving   sync.WaitGroup
	detachErr error
}

func newPort(ifi *net.Interface, dev device, opts Options, release func()) *port {
	return &port{
		ifi:     ifi,
		dev:     dev,
		readers: opts.Readers,
		queue:   newTxQueue(opts.Batch, dev.write),
		release: release,
		done:    make(chan struct{}),
	}
}

func (p *port) Name() string {
	return p.ifi.Name
}

func (p *port) HardwareAddr() net.HardwareAddr {
	return p.ifi.HardwareAddr
}

func (p *port) Transmit(f *fwd.Frame) error {
	defer f.Release()
	if p.detached.Load() {
		return ErrDetached
	}
	return p.dev.write(f.Bytes())
}

func (p *port) TransmitFast(f *fwd.Frame, more bool) error {
	defer f.Release()
	return p.queue.push(f.Bytes(), more)
}

func (p *port) Stopped() bool {
	return p.queue.stopped()
}

// Truncated is the number of received frames dropped for not fitting the capture buffer.
func (p *port) Truncated() uint64 {
	return p.truncated.Load()
}

// Serve runs the readers and the burst flusher until ctx is done or the port is detached.
// The first read error stops every reader and is returned.
func (p *port) Serve(ctx context.Context, deliver fwd.DeliverFunc) error {
	p.lock.Lock()
	if p.detached.Load() {
		p.lock.Unlock()
		return nil
	}
	p.serving.Add(1)
	p.lock.Unlock()
	defer p.serving.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
			cancel()
		}
	}()

	errs := make(chan error, p.readers)
	wg := sync.WaitGroup{}
	for i := 0; i < p.readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := p.readLoop(ctx, deliver); err != nil {
				log.Error().Err(err).Str("interface", p.Name()).Msgf("Reader %d failed", i)
				errs <- err
				cancel()
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.flushLoop(ctx)
	}()
	log.Debug().Str("interface", p.Name()).Msgf("Serving with %d readers", p.readers)
	wg.Wait()
	close(errs)
	return <-errs
}

func (p *port) readLoop(ctx context.Context, deliver fwd.DeliverFunc) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		data, release, err := p.dev.read()
		if err == errPollTimeout {
			continue
		}
		if errors.Is(err, errTruncated) {
			p.truncated.Add(1)
			log.Debug().Err(err).Str("interface", p.Name()).Msg("Dropping truncated frame")
			continue
		}
		if err != nil {
			if p.detached.Load() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		f := fwd.NewFrame(data, originOf(data, p.ifi.HardwareAddr), release)
		if deliver(f) == fwd.PassThrough {
			// The host stack has its own copy already.
			f.Release()
		}
	}
}

func (p *port) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.flush(); err != nil {
				log.Debug().Err(err).Str("interface", p.Name()).Msg("Burst flush failed")
			}
		}
	}
}

// Detach stops the readers, flushes what is queued and closes the device. Safe to repeat.
func (p *port) Detach() error {
	p.lock.Lock()
	if p.detached.Load() {
		p.lock.Unlock()
		return p.detachErr
	}
	p.detached.Store(true)
	close(p.done)
	p.lock.Unlock()

	p.serving.Wait()
	if err := p.queue.freeze(); err != nil {
		log.Warn().Err(err).Str("interface", p.Name()).Msg("Final flush failed")
	}
	p.detachErr = p.dev.close()
	p.release()
	log.Info().Str("interface", p.Name()).Uint64("truncated", p.truncated.Load()).Msg("Detached")
	return p.detachErr
}
