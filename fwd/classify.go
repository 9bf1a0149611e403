package fwd

import "github.com/google/gopacket/layers"

type Verdict uint8

const (
	VerdictPassThrough Verdict = iota
	VerdictDrop
	VerdictForward
)

func (v Verdict) String() string {
	switch v {
	case VerdictPassThrough:
		return "pass-through"
	case VerdictDrop:
		return "drop"
	default:
		return "forward"
	}
}

type DropReason uint8

const (
	DropNone DropReason = iota
	// DropTerminate - terminate mode, every frame is discarded.
	DropTerminate
	// DropRunt - shorter than an Ethernet header.
	DropRunt
	// DropMalformed - an IPv4 frame due for rewrite whose header cannot be trusted.
	DropMalformed
)

func (r DropReason) String() string {
	switch r {
	case DropTerminate:
		return "terminate"
	case DropRunt:
		return "runt"
	case DropMalformed:
		return "malformed"
	default:
		return "none"
	}
}

// Decision is what the classifier wants done with a frame.
type Decision struct {
	Verdict Verdict
	Rewrite bool
	Reason  DropReason
}

// Classify decides what happens to a frame that arrived on the side described by b.
// It never mutates the frame.
func Classify(f *Frame, b *Binding, terminate bool) Decision {
	if f.Origin.Loopback() {
		return Decision{Verdict: VerdictPassThrough}
	}
	if terminate {
		return Decision{Verdict: VerdictDrop, Reason: DropTerminate}
	}
	if f.Len() < EthHeaderLen {
		return Decision{Verdict: VerdictDrop, Reason: DropRunt}
	}
	if !b.DNAT() || f.EtherType() != layers.EthernetTypeIPv4 {
		return Decision{Verdict: VerdictForward}
	}
	if _, ok := f.IPv4(); !ok {
		return Decision{Verdict: VerdictDrop, Reason: DropMalformed}
	}
	return Decision{Verdict: VerdictForward, Rewrite: true}
}
