package fwd

import (
	"testing"

	"l2fwd/common"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	dnat := dnatBinding(t, "eth1")
	plain := plainBinding(t, "eth2")

	badChecksum := common.CreateFrame(t)
	badChecksum[EthHeaderLen+10] ^= 0xff

	badIHL := common.CreateFrame(t)
	badIHL[EthHeaderLen] = 0x43

	truncated := common.CreateFrame(t)[:EthHeaderLen+12]

	tests := []struct {
		name      string
		frame     *Frame
		binding   *Binding
		terminate bool
		want      Decision
	}{
		{"loopback", NewFrame(common.CreateFrame(t), OriginLoopback, nil), &dnat, false, Decision{Verdict: VerdictPassThrough}},
		{"outgoing", NewFrame(common.CreateFrame(t), OriginOutgoing, nil), &plain, true, Decision{Verdict: VerdictPassThrough}},
		{"terminate", frameOf(common.CreateFrame(t)), &dnat, true, Decision{Verdict: VerdictDrop, Reason: DropTerminate}},
		{"runt", frameOf([]byte{0xff, 0xff}), &plain, false, Decision{Verdict: VerdictDrop, Reason: DropRunt}},
		{"plain ipv4", frameOf(common.CreateFrame(t)), &plain, false, Decision{Verdict: VerdictForward}},
		{"dnat ipv4", frameOf(common.CreateFrame(t)), &dnat, false, Decision{Verdict: VerdictForward, Rewrite: true}},
		{"dnat arp", frameOf(common.CreateARPFrame(t, peerMAC, clientIP, serviceIP)), &dnat, false, Decision{Verdict: VerdictForward}},
		{"dnat bad checksum", frameOf(badChecksum), &dnat, false, Decision{Verdict: VerdictForward, Rewrite: true}},
		{"dnat bad ihl", frameOf(badIHL), &dnat, false, Decision{Verdict: VerdictDrop, Reason: DropMalformed}},
		{"dnat truncated", frameOf(truncated), &dnat, false, Decision{Verdict: VerdictDrop, Reason: DropMalformed}},
		{"plain truncated", frameOf(append([]byte(nil), truncated...)), &plain, false, Decision{Verdict: VerdictForward}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]byte(nil), tt.frame.Bytes()...)
			require.Equal(t, tt.want, Classify(tt.frame, tt.binding, tt.terminate))
			require.Equal(t, before, tt.frame.Bytes())
		})
	}
}
