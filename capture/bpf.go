package capture

import "golang.org/x/net/bpf"

// packetOutgoing is the AF_PACKET packet type of frames sent by the host itself.
const packetOutgoing = 4

// outgoingFilter accepts every frame in full except the ones the host transmitted.
func outgoingFilter(snaplen int) ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: packetOutgoing, SkipTrue: 1},
		bpf.RetConstant{Val: uint32(snaplen)},
		bpf.RetConstant{Val: 0},
	})
}
