package fwd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// LogSink writes the periodic frame count through zerolog.
type LogSink struct{}

func (LogSink) LogStat(count uint64) {
	log.Info().Uint64("count", count).Msg("l2fwd count")
}

// SideStats are the transmit counters of one egress side.
type SideStats struct {
	Sent, Failed, Blocked uint64
	LastTransmit          time.Time
}

// Stats is a point in time snapshot of the engine counters.
type Stats struct {
	Count         uint64
	Forwarded     uint64
	Rewritten     uint64
	PassedThrough uint64
	Dropped       map[DropReason]uint64
	L4Repaired    uint64
	Tx            [2]SideStats
}

func (s Stats) String() string {
	return fmt.Sprintf("count=%d forwarded=%d rewritten=%d passed=%d dropped(terminate=%d runt=%d malformed=%d) tx A(sent=%d failed=%d blocked=%d) B(sent=%d failed=%d blocked=%d)",
		s.Count, s.Forwarded, s.Rewritten, s.PassedThrough,
		s.Dropped[DropTerminate], s.Dropped[DropRunt], s.Dropped[DropMalformed],
		s.Tx[SideA].Sent, s.Tx[SideA].Failed, s.Tx[SideA].Blocked,
		s.Tx[SideB].Sent, s.Tx[SideB].Failed, s.Tx[SideB].Blocked)
}

func (e *Engine) Stats() Stats {
	st := e.state.Load()
	s := Stats{
		Count:         e.count.Load(),
		Forwarded:     e.c.forwarded.Load(),
		Rewritten:     e.c.rewritten.Load(),
		PassedThrough: e.c.passed.Load(),
		L4Repaired:    e.c.l4Repaired.Load(),
		Dropped: map[DropReason]uint64{
			DropTerminate: e.c.dropTerminate.Load(),
			DropRunt:      e.c.dropRunt.Load(),
			DropMalformed: e.c.dropMalformed.Load(),
		},
	}
	for i := range s.Tx {
		s.Tx[i] = SideStats{
			Sent:         e.tx[i].Sent.Load(),
			Failed:       e.tx[i].Failed.Load(),
			Blocked:      e.tx[i].Blocked.Load(),
			LastTransmit: st.schedulers[i].LastTransmit(),
		}
	}
	return s
}

// Report logs a stats snapshot every period until ctx is done.
func (e *Engine) Report(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info().Msgf("Forwarding stats. %s", e.Stats())
		}
	}
}
