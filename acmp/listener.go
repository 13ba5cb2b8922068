package acmp

import (
	"time"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/inflight"
)

// pendingTalkerOp records the controller-facing context a nested
// CONNECT_TX/DISCONNECT_TX exchange must restore on completion (spec.md
// §4.3.3).
type pendingTalkerOp struct {
	controllerReq PDU
	disconnect    bool
}

// Listener implements the local entity's ACMP listener role (spec.md
// §4.3.3): ingress CONNECT_RX/DISCONNECT_RX/GET_RX_STATE handling, with the
// two-phase nested inflight pattern for forwarding to the talker.
type Listener struct {
	entityID avdecc.EntityID
	send     Sender
	clock    clock.Clock
	log      clog.Clog

	table         *ListenerTable
	streamInputs  map[uint16]bool
	talkerSeq     avdecc.SequenceID
	pendingTalker map[avdecc.SequenceID]pendingTalkerOp
	nested        *inflight.Table[avdecc.SequenceID]
}

// NewListener builds a Listener for entityID with the given stream input
// count (spec.md §3.3 STREAM_INPUT descriptor count).
func NewListener(entityID avdecc.EntityID, send Sender, clk clock.Clock, log clog.Clog, streamInputCount uint16, talkerTimeout time.Duration) *Listener {
	inputs := make(map[uint16]bool, streamInputCount)
	for i := uint16(0); i < streamInputCount; i++ {
		inputs[i] = true
	}
	if talkerTimeout == 0 {
		talkerTimeout = DefaultCommandTimeout
	}
	return &Listener{
		entityID:      entityID,
		send:          send,
		clock:         clk,
		log:           log,
		table:         NewListenerTable(),
		streamInputs:  inputs,
		pendingTalker: make(map[avdecc.SequenceID]pendingTalkerOp),
		nested:        inflight.New[avdecc.SequenceID](clk, inflight.Config{Timeout: talkerTimeout, MaxRetries: 0}),
	}
}

func (l *Listener) nextTalkerSeq() avdecc.SequenceID {
	l.talkerSeq++
	return l.talkerSeq
}

func (l *Listener) respondToController(req PDU, mt MessageType, status Status) error {
	resp := req
	resp.MessageType = mt
	resp.Status = status
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return l.send.SendACMP(frame)
}

// HandleConnectRxCommand processes an ingress CONNECT_RX_COMMAND from the
// controller by forwarding CONNECT_TX_COMMAND to the talker (spec.md
// §4.3.3).
func (l *Listener) HandleConnectRxCommand(req PDU) error {
	if req.ListenerEntityID != l.entityID {
		return l.respondToController(req, ConnectRxResponse, StatusListenerUnknownID)
	}
	if !l.streamInputs[req.ListenerUniqueID] {
		return l.respondToController(req, ConnectRxResponse, StatusListenerUnknownID)
	}

	talkerSeq := l.nextTalkerSeq()
	l.pendingTalker[talkerSeq] = pendingTalkerOp{controllerReq: req}

	forward := PDU{
		MessageType:        ConnectTxCommand,
		ControllerEntityID: l.entityID,
		TalkerEntityID:     req.TalkerEntityID,
		TalkerUniqueID:     req.TalkerUniqueID,
		ListenerEntityID:   req.ListenerEntityID,
		ListenerUniqueID:   req.ListenerUniqueID,
		SequenceID:         talkerSeq,
	}
	frame, err := forward.Encode()
	if err != nil {
		return err
	}
	l.nested.Insert(talkerSeq, uint64(req.TalkerEntityID), int(ConnectTxCommand), frame)
	return l.send.SendACMP(frame)
}

// HandleDisconnectRxCommand processes an ingress DISCONNECT_RX_COMMAND by
// forwarding DISCONNECT_TX_COMMAND to the talker (spec.md §4.3.3).
func (l *Listener) HandleDisconnectRxCommand(req PDU) error {
	key := ListenerKey{EntityID: req.ListenerEntityID, UniqueID: req.ListenerUniqueID}
	stream := l.table.Get(key)
	if !stream.Connected {
		return l.respondToController(req, DisconnectRxResponse, StatusNotConnected)
	}

	talkerSeq := l.nextTalkerSeq()
	l.pendingTalker[talkerSeq] = pendingTalkerOp{controllerReq: req, disconnect: true}

	forward := PDU{
		MessageType:        DisconnectTxCommand,
		ControllerEntityID: l.entityID,
		TalkerEntityID:     stream.Talker.EntityID,
		TalkerUniqueID:     stream.Talker.UniqueID,
		ListenerEntityID:   req.ListenerEntityID,
		ListenerUniqueID:   req.ListenerUniqueID,
		SequenceID:         talkerSeq,
	}
	frame, err := forward.Encode()
	if err != nil {
		return err
	}
	l.nested.Insert(talkerSeq, uint64(stream.Talker.EntityID), int(DisconnectTxCommand), frame)
	return l.send.SendACMP(frame)
}

// HandleTalkerResponse processes CONNECT_TX_RESPONSE/DISCONNECT_TX_RESPONSE
// from the talker, binds or clears the local listener record, and restores
// the controller's original sequence_id (spec.md §4.3.3).
func (l *Listener) HandleTalkerResponse(resp PDU) error {
	op, ok := l.pendingTalker[resp.SequenceID]
	if !ok {
		return nil
	}
	if _, err := l.nested.Resolve(resp.SequenceID); err != nil {
		return nil
	}
	delete(l.pendingTalker, resp.SequenceID)

	ctrlReq := op.controllerReq
	lk := ListenerKey{EntityID: ctrlReq.ListenerEntityID, UniqueID: ctrlReq.ListenerUniqueID}

	if op.disconnect {
		if resp.Status == StatusSuccess {
			l.table.Disconnect(lk)
		}
		return l.respondToController(ctrlReq, DisconnectRxResponse, resp.Status)
	}

	if resp.Status != StatusSuccess {
		return l.respondToController(ctrlReq, ConnectRxResponse, resp.Status)
	}

	talkerKey := TalkerKey{EntityID: ctrlReq.TalkerEntityID, UniqueID: ctrlReq.TalkerUniqueID}
	l.table.Connect(lk, talkerKey, resp.StreamID, resp.StreamDestMAC, resp.StreamVlanID, resp.ConnectionCount)

	out := ctrlReq
	out.MessageType = ConnectRxResponse
	out.Status = StatusSuccess
	out.StreamID = resp.StreamID
	out.StreamDestMAC = resp.StreamDestMAC
	out.StreamVlanID = resp.StreamVlanID
	out.ConnectionCount = resp.ConnectionCount
	frame, err := out.Encode()
	if err != nil {
		return err
	}
	return l.send.SendACMP(frame)
}

// HandleGetRxState responds to GET_RX_STATE_COMMAND with the local binding
// (spec.md §4.3.3: "a pure local read").
func (l *Listener) HandleGetRxState(req PDU) error {
	key := ListenerKey{EntityID: req.ListenerEntityID, UniqueID: req.ListenerUniqueID}
	stream := l.table.Get(key)

	resp := req
	resp.MessageType = GetRxStateResponse
	resp.Status = StatusSuccess
	if stream.Connected {
		resp.TalkerEntityID = stream.Talker.EntityID
		resp.TalkerUniqueID = stream.Talker.UniqueID
	}
	resp.StreamID = stream.StreamID
	resp.StreamDestMAC = stream.StreamDestMAC
	resp.StreamVlanID = stream.StreamVlanID
	resp.ConnectionCount = stream.ConnectionCount
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return l.send.SendACMP(frame)
}

// Tick drives the nested inflight timeout: a talker that never responds
// yields LISTENER_TALKER_TIMEOUT back to the controller (spec.md §4.3.3).
func (l *Listener) Tick() error {
	for _, r := range l.nested.Tick() {
		if !r.Expired {
			continue
		}
		seq := r.Key.(avdecc.SequenceID)
		op, ok := l.pendingTalker[seq]
		if !ok {
			continue
		}
		delete(l.pendingTalker, seq)
		mt := ConnectRxResponse
		if op.disconnect {
			mt = DisconnectRxResponse
		}
		if err := l.respondToController(op.controllerReq, mt, StatusListenerTalkerTimeout); err != nil {
			return err
		}
	}
	return nil
}
