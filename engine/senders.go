package engine

import (
	"github.com/zarfld/go-avdecc/acmp"
	"github.com/zarfld/go-avdecc/adp"
	"github.com/zarfld/go-avdecc/aecp"
)

// adpSender/acmpSender/aecpSender adapt the engine's bounded send queue to
// the Sender interface each protocol package expects, classifying every
// outgoing frame for the §5 backpressure policy along the way.
type adpSender struct{ e *Engine }

func (s adpSender) SendADP(frame []byte) error {
	kind := kindAdvertise
	if p, err := adp.Decode(frame); err == nil && p.MessageType == adp.EntityDiscover {
		kind = kindCommand
	}
	s.e.queue.Push(outboundFrame{kind: kind, payload: frame})
	return nil
}

type acmpSender struct{ e *Engine }

func (s acmpSender) SendACMP(frame []byte) error {
	kind := kindCommand
	if p, err := acmp.Decode(frame); err == nil && p.MessageType.IsResponse() {
		kind = kindResponse
	}
	s.e.queue.Push(outboundFrame{kind: kind, payload: frame})
	return nil
}

type aecpSender struct{ e *Engine }

func (s aecpSender) SendAECP(frame []byte) error {
	kind := kindCommand
	if p, err := aecp.Decode(frame); err == nil && p.MessageType == aecp.AEMResponse {
		kind = kindResponse
	}
	s.e.queue.Push(outboundFrame{kind: kind, payload: frame})
	return nil
}
