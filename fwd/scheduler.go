package fwd

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// TxStats are the transmit counters of one egress side. They outlive the scheduler, so the
// totals survive a reconfiguration.
type TxStats struct {
	Sent    atomic.Uint64
	Failed  atomic.Uint64
	Blocked atomic.Uint64
}

// Scheduler decides per outbound frame between the normal transmit path and the burst path.
// One scheduler exists per egress link; every delivery context shares its countdown.
type Scheduler struct {
	link      Link
	burst     int32
	countdown atomic.Int32
	lastTx    atomic.Int64
	stats     *TxStats
}

// NewScheduler - burst <= 1 disables burst mode. stats may be nil.
func NewScheduler(link Link, burst int, stats *TxStats) *Scheduler {
	if burst < 1 {
		burst = 1
	}
	if stats == nil {
		stats = &TxStats{}
	}
	s := &Scheduler{link: link, burst: int32(burst), stats: stats}
	s.countdown.Store(s.burst)
	return s
}

// Transmit hands f to the link and gives up ownership of it.
func (s *Scheduler) Transmit(f *Frame) {
	if s.burst <= 1 {
		if err := s.link.Transmit(f); err != nil {
			s.stats.Failed.Add(1)
			log.Debug().Err(err).Msgf("Transmit on %s failed", s.link.Name())
			return
		}
		s.stats.Sent.Add(1)
		return
	}

	if s.link.Stopped() {
		// No fast path while the queue is stopped. The countdown is left where it is.
		s.stats.Blocked.Add(1)
		f.Release()
		return
	}
	more := s.next()
	if err := s.link.TransmitFast(f, more); err != nil {
		s.stats.Failed.Add(1)
		log.Debug().Err(err).Msgf("Fast transmit on %s failed", s.link.Name())
		return
	}
	s.stats.Sent.Add(1)
	s.lastTx.Store(time.Now().UnixNano())
}

// next steps the countdown and reports whether more frames of this burst follow.
// The countdown wraps back to the burst size when it reaches zero.
func (s *Scheduler) next() bool {
	for {
		c := s.countdown.Load()
		n := c - 1
		reset := n
		if n <= 0 {
			reset = s.burst
		}
		if s.countdown.CompareAndSwap(c, reset) {
			return n > 0
		}
	}
}

func (s *Scheduler) Burst() int {
	return int(s.burst)
}

// Countdown is the number of frames left in the current burst.
func (s *Scheduler) Countdown() int {
	return int(s.countdown.Load())
}

// LastTransmit is the time of the last successful fast path transmit, zero if none yet.
func (s *Scheduler) LastTransmit() time.Time {
	ns := s.lastTx.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
