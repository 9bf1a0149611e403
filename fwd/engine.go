/*
Package fwd implements a transparent two port layer 2 forwarder with optional per side DNAT.

Frames arriving on one side leave on the other. A side configured with a DNAT target gets its
IPv4 frames rewritten on the way through: destination moved to the target, source moved to the
side's own address.
*/
package fwd

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Settings are the engine wide options. They are read on every frame and never modified in
// place, Reconfigure swaps in a new copy.
type Settings struct {
	// Stats enables the count log every StatsInterval frames.
	Stats         bool
	StatsInterval uint64
	// Terminate discards every frame instead of forwarding it.
	Terminate bool
	// Burst > 1 enables burst transmission with that many frames per burst.
	Burst int
	// FixTransportChecksum recomputes TCP/UDP checksums of rewritten frames.
	FixTransportChecksum bool
}

// DefaultSettings match the module parameter defaults.
var DefaultSettings = Settings{
	StatsInterval: 10,
	Burst:         1,
}

func (s Settings) Validate() error {
	if s.StatsInterval < 1 {
		return &ConfigurationError{Err: fmt.Errorf("%w: stats interval must be at least 1, got %d", ErrInvalidSetting, s.StatsInterval)}
	}
	if s.Burst < 1 || s.Burst > 1<<15-1 {
		return &ConfigurationError{Err: fmt.Errorf("%w: burst must be between 1 and 32767, got %d", ErrInvalidSetting, s.Burst)}
	}
	return nil
}

type runState struct {
	settings   Settings
	schedulers [2]*Scheduler
}

type counters struct {
	forwarded     atomic.Uint64
	rewritten     atomic.Uint64
	passed        atomic.Uint64
	dropTerminate atomic.Uint64
	dropRunt      atomic.Uint64
	dropMalformed atomic.Uint64
	l4Repaired    atomic.Uint64
}

// Engine is the per frame forwarding logic. OnFrame is safe for concurrent use from any number
// of delivery contexts and never blocks.
type Engine struct {
	pair  InterfacePair
	sink  StatsSink
	state atomic.Pointer[runState]
	count atomic.Uint64
	tx    [2]TxStats
	c     counters
}

func NewEngine(pair InterfacePair, settings Settings, sink StatsSink) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	for i, l := range pair.Links {
		if l == nil {
			return nil, &ConfigurationError{Interface: pair.Bindings[i].Interface(), Err: fmt.Errorf("%w: side %s has no link", ErrUnknownInterface, Side(i))}
		}
	}
	if sink == nil {
		sink = LogSink{}
	}
	e := &Engine{pair: pair, sink: sink}
	e.state.Store(e.newState(settings))
	return e, nil
}

func (e *Engine) newState(settings Settings) *runState {
	st := &runState{settings: settings}
	for i := range st.schedulers {
		st.schedulers[i] = NewScheduler(e.pair.Links[i], settings.Burst, &e.tx[i])
	}
	return st
}

// Reconfigure swaps in new settings. This re-initialises the engine: the frame counter starts
// again from zero and the burst countdowns restart from the new burst size. Frames already in
// flight finish with the settings they started with.
func (e *Engine) Reconfigure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	e.count.Store(0)
	e.state.Store(e.newState(settings))
	log.Info().Msgf("Engine reconfigured: %+v", settings)
	return nil
}

func (e *Engine) Settings() Settings {
	return e.state.Load().settings
}

// Count is the number of frames seen so far, loopback frames excluded.
func (e *Engine) Count() uint64 {
	return e.count.Load()
}

// Scheduler returns the transmit scheduler used for frames leaving on side s.
func (e *Engine) Scheduler(s Side) *Scheduler {
	return e.state.Load().schedulers[s]
}

func (e *Engine) Binding(s Side) *Binding {
	return &e.pair.Bindings[s]
}

// OnFrame processes one frame that arrived on side. Unless the frame is passed through, the
// engine owns it afterwards: it is either handed to the other side's link or released.
func (e *Engine) OnFrame(f *Frame, side Side) Action {
	st := e.state.Load()
	b := &e.pair.Bindings[side]
	d := Classify(f, b, st.settings.Terminate)
	if d.Verdict == VerdictPassThrough {
		e.c.passed.Add(1)
		return PassThrough
	}

	n := e.count.Add(1)
	if st.settings.Stats && n%st.settings.StatsInterval == 0 {
		e.sink.LogStat(n)
	}

	if d.Verdict == VerdictDrop {
		switch d.Reason {
		case DropTerminate:
			e.c.dropTerminate.Add(1)
		case DropRunt:
			e.c.dropRunt.Add(1)
		case DropMalformed:
			e.c.dropMalformed.Add(1)
		}
		log.Debug().Msgf("Dropping %s on %s (%s)", f, b.Interface(), d.Reason)
		f.Release()
		return Consumed
	}

	if d.Rewrite && Rewrite(f, b) {
		e.c.rewritten.Add(1)
		if st.settings.FixTransportChecksum && RepairTransportChecksum(f) {
			e.c.l4Repaired.Add(1)
		}
	}
	// Frames arrive with their link-layer header intact, so there is nothing to push back
	// before the retransmit.
	e.c.forwarded.Add(1)
	st.schedulers[side.Peer()].Transmit(f)
	return Consumed
}
