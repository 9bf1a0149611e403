package fwd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Config is everything setup needs: the two interface descriptors and the engine settings.
type Config struct {
	Net1 string
	Net2 string
	Settings
}

// Forwarder is an engine bound to two attached ports.
type Forwarder struct {
	*Engine
	ports [2]Port
}

// Setup binds both interfaces, attaches to them and builds the engine. It is all or nothing:
// on any error every port attached so far is detached again.
func Setup(cfg Config, host Host, sink StatsSink) (*Forwarder, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	var pair InterfacePair
	for i, desc := range []string{cfg.Net1, cfg.Net2} {
		b, err := bindInterface(desc, host)
		if err != nil {
			return nil, err
		}
		pair.Bindings[i] = b
		log.Info().Msgf("Side %s bound to %s", Side(i), &pair.Bindings[i])
	}

	fw := &Forwarder{}
	for i := range pair.Bindings {
		name := pair.Bindings[i].Interface()
		p, err := host.Attach(name)
		if err != nil {
			fw.Close()
			var ae *AttachError
			if !errors.As(err, &ae) {
				err = &AttachError{Interface: name, Err: err}
			}
			return nil, err
		}
		fw.ports[i] = p
		pair.Links[i] = p
		// Rewritten frames carry the resolved MAC, it has to be the one the link sends from.
		if b := &pair.Bindings[i]; b.DNAT() && !bytes.Equal(p.HardwareAddr(), b.LocalMAC()) {
			fw.Close()
			return nil, &ConfigurationError{Interface: name, Err: fmt.Errorf("%w: resolved %s, attached %s", ErrAddressChanged, b.LocalMAC(), p.HardwareAddr())}
		}
	}

	engine, err := NewEngine(pair, cfg.Settings, sink)
	if err != nil {
		fw.Close()
		return nil, err
	}
	fw.Engine = engine
	return fw, nil
}

func bindInterface(desc string, host Host) (Binding, error) {
	d, err := ParseDescriptor(desc)
	if err != nil {
		return Binding{}, err
	}
	ip, mac, err := host.ResolveLocalAddress(d.Name)
	if err != nil {
		return Binding{}, &ConfigurationError{Interface: d.Name, Err: fmt.Errorf("%w: %v", ErrUnknownInterface, err)}
	}
	return NewBinding(d, ip, mac)
}

// Run delivers frames from both ports into the engine until ctx is done or a port fails.
// The first port error is returned.
func (fw *Forwarder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(fw.ports))
	wg := sync.WaitGroup{}
	for i, p := range fw.ports {
		side := Side(i)
		wg.Add(1)
		go func(p Port) {
			defer wg.Done()
			err := p.Serve(ctx, func(f *Frame) Action {
				return fw.OnFrame(f, side)
			})
			if err != nil {
				log.Error().Err(err).Msgf("Port %s stopped", p.Name())
				errs <- err
				cancel()
			}
		}(p)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// Close detaches both ports. Safe on a partially set up forwarder and safe to repeat.
func (fw *Forwarder) Close() error {
	var first error
	for _, p := range fw.ports {
		if p == nil {
			continue
		}
		if err := p.Detach(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (fw *Forwarder) Port(s Side) Port {
	return fw.ports[s]
}
