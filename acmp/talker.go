package acmp

import (
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clog"
)

// Talker implements the local entity's ACMP talker role (spec.md §4.3.2):
// ingress CONNECT_TX/DISCONNECT_TX/GET_TX_STATE/GET_TX_CONNECTION handling
// against a configured set of stream outputs.
type Talker struct {
	entityID avdecc.EntityID
	send     Sender
	log      clog.Clog

	table         *TalkerTable
	streamOutputs map[uint16]bool // valid talker_unique_id values
}

// NewTalker builds a Talker for entityID with the given stream output
// indices (spec.md §3.3 STREAM_OUTPUT descriptor count).
func NewTalker(entityID avdecc.EntityID, send Sender, log clog.Clog, streamOutputCount uint16) *Talker {
	outputs := make(map[uint16]bool, streamOutputCount)
	for i := uint16(0); i < streamOutputCount; i++ {
		outputs[i] = true
	}
	return &Talker{
		entityID:      entityID,
		send:          send,
		log:           log,
		table:         NewTalkerTable(),
		streamOutputs: outputs,
	}
}

// SetExclusive marks a stream output as exclusive (single listener only).
func (t *Talker) SetExclusive(uniqueID uint16, exclusive bool) {
	key := TalkerKey{EntityID: t.entityID, UniqueID: uniqueID}
	t.table.Get(key).Exclusive = exclusive
}

func (t *Talker) respond(req PDU, mt MessageType, status Status) error {
	resp := req
	resp.MessageType = mt
	resp.Status = status
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return t.send.SendACMP(frame)
}

// HandleConnectTxCommand processes an ingress CONNECT_TX_COMMAND (spec.md
// §4.3.2).
func (t *Talker) HandleConnectTxCommand(req PDU) error {
	if req.TalkerEntityID != t.entityID {
		return t.respond(req, ConnectTxResponse, StatusTalkerUnknownID)
	}
	if !t.streamOutputs[req.TalkerUniqueID] {
		return t.respond(req, ConnectTxResponse, StatusTalkerNoStreamIndex)
	}

	key := TalkerKey{EntityID: req.TalkerEntityID, UniqueID: req.TalkerUniqueID}
	lk := ListenerKey{EntityID: req.ListenerEntityID, UniqueID: req.ListenerUniqueID}

	stream := t.table.Get(key)
	if stream.Exclusive && t.table.HasOtherListeners(key, lk) {
		return t.respond(req, ConnectTxResponse, StatusTalkerExclusive)
	}

	count := t.table.Bind(key, lk)

	resp := req
	resp.MessageType = ConnectTxResponse
	resp.Status = StatusSuccess
	resp.StreamID = stream.StreamID
	resp.StreamDestMAC = stream.StreamDestMAC
	resp.StreamVlanID = stream.StreamVlanID
	resp.ConnectionCount = count
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return t.send.SendACMP(frame)
}

// HandleDisconnectTxCommand processes an ingress DISCONNECT_TX_COMMAND
// (spec.md §4.3.2).
func (t *Talker) HandleDisconnectTxCommand(req PDU) error {
	key := TalkerKey{EntityID: req.TalkerEntityID, UniqueID: req.TalkerUniqueID}
	lk := ListenerKey{EntityID: req.ListenerEntityID, UniqueID: req.ListenerUniqueID}

	count, ok := t.table.Unbind(key, lk)
	if !ok {
		return t.respond(req, DisconnectTxResponse, StatusNoSuchConnection)
	}

	resp := req
	resp.MessageType = DisconnectTxResponse
	resp.Status = StatusSuccess
	resp.ConnectionCount = count
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return t.send.SendACMP(frame)
}

// HandleGetTxState processes GET_TX_STATE_COMMAND / GET_TX_CONNECTION_COMMAND
// (spec.md §4.3.2): respond with current stream_id/dest_mac/connection_count.
func (t *Talker) HandleGetTxState(req PDU, responseType MessageType) error {
	key := TalkerKey{EntityID: req.TalkerEntityID, UniqueID: req.TalkerUniqueID}
	stream := t.table.Get(key)

	resp := req
	resp.MessageType = responseType
	resp.Status = StatusSuccess
	resp.StreamID = stream.StreamID
	resp.StreamDestMAC = stream.StreamDestMAC
	resp.StreamVlanID = stream.StreamVlanID
	resp.ConnectionCount = stream.ConnectionCount()
	frame, err := resp.Encode()
	if err != nil {
		return err
	}
	return t.send.SendACMP(frame)
}
