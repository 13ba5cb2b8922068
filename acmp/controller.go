package acmp

import (
	"time"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/inflight"
)

// DefaultCommandTimeout and DefaultMaxRetries are the spec.md §4.3.1
// defaults: 500 ms per attempt, one retry (two attempts total).
const (
	DefaultCommandTimeout = 500 * time.Millisecond
	DefaultMaxRetries     = 1
)

// Sender transmits an encoded ACMP frame to the engine's L2 transport.
type Sender interface {
	SendACMP(frame []byte) error
}

// Completion is invoked exactly once per controller operation (spec.md
// Testable Property 9): either with the peer's response PDU, or with
// ok=false and status=StatusTimedOut when retries are exhausted.
type Completion func(resp PDU, ok bool)

// ControllerConfig bounds the controller's inflight retry behaviour,
// following the teacher's Config.Valid()-with-defaults idiom (cs104.Config).
type ControllerConfig struct {
	CommandTimeout time.Duration
	MaxRetries     int
}

// Valid fills in defaults for any unset field.
func (c *ControllerConfig) Valid() error {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return nil
}

type pendingOp struct {
	completion Completion
}

// Controller drives the local application's ACMP controller role (spec.md
// §4.3.1): connect_stream/disconnect_stream/get_tx_state/get_rx_state, each
// backed by the shared inflight.Table retry machinery.
type Controller struct {
	entityID avdecc.EntityID
	send     Sender
	clock    clock.Clock
	log      clog.Clog

	seq     avdecc.SequenceID
	pending map[avdecc.SequenceID]pendingOp
	table   *inflight.Table[avdecc.SequenceID]
}

// NewController builds a Controller for the local entity identified by
// entityID.
func NewController(entityID avdecc.EntityID, send Sender, clk clock.Clock, log clog.Clog, cfg ControllerConfig) *Controller {
	_ = cfg.Valid()
	return &Controller{
		entityID: entityID,
		send:     send,
		clock:    clk,
		log:      log,
		pending:  make(map[avdecc.SequenceID]pendingOp),
		table: inflight.New[avdecc.SequenceID](clk, inflight.Config{
			Timeout:    cfg.CommandTimeout,
			MaxRetries: cfg.MaxRetries,
		}),
	}
}

func (c *Controller) nextSeq() avdecc.SequenceID {
	c.seq++
	return c.seq
}

func (c *Controller) issue(mt MessageType, p PDU, done Completion) (avdecc.SequenceID, error) {
	seq := c.nextSeq()
	p.SequenceID = seq
	p.MessageType = mt
	p.ControllerEntityID = c.entityID
	frame, err := p.Encode()
	if err != nil {
		return 0, err
	}
	target := p.ListenerEntityID
	if target == 0 {
		target = p.TalkerEntityID
	}
	c.pending[seq] = pendingOp{completion: done}
	c.table.Insert(seq, uint64(target), int(mt), frame)
	if err := c.send.SendACMP(frame); err != nil {
		return 0, err
	}
	return seq, nil
}

// ConnectStream issues CONNECT_RX_COMMAND to the listener (spec.md §4.3.1,
// §4.3.3 two-phase flow).
func (c *Controller) ConnectStream(talker avdecc.EntityID, tui uint16, listener avdecc.EntityID, lui uint16, done Completion) (avdecc.SequenceID, error) {
	return c.issue(ConnectRxCommand, PDU{
		TalkerEntityID:   talker,
		TalkerUniqueID:   tui,
		ListenerEntityID: listener,
		ListenerUniqueID: lui,
	}, done)
}

// DisconnectStream issues DISCONNECT_RX_COMMAND to the listener.
func (c *Controller) DisconnectStream(talker avdecc.EntityID, tui uint16, listener avdecc.EntityID, lui uint16, done Completion) (avdecc.SequenceID, error) {
	return c.issue(DisconnectRxCommand, PDU{
		TalkerEntityID:   talker,
		TalkerUniqueID:   tui,
		ListenerEntityID: listener,
		ListenerUniqueID: lui,
	}, done)
}

// GetTxState issues GET_TX_STATE_COMMAND to the talker.
func (c *Controller) GetTxState(talker avdecc.EntityID, tui uint16, done Completion) (avdecc.SequenceID, error) {
	return c.issue(GetTxStateCommand, PDU{
		TalkerEntityID: talker,
		TalkerUniqueID: tui,
	}, done)
}

// GetRxState issues GET_RX_STATE_COMMAND to the listener.
func (c *Controller) GetRxState(listener avdecc.EntityID, lui uint16, done Completion) (avdecc.SequenceID, error) {
	return c.issue(GetRxStateCommand, PDU{
		ListenerEntityID: listener,
		ListenerUniqueID: lui,
	}, done)
}

// HandleResponse matches an incoming ACMP response to its pending operation
// and invokes its completion exactly once (spec.md §4.3.1, Testable
// Property 9). Unmatched/duplicate responses are dropped silently.
func (c *Controller) HandleResponse(p PDU) {
	op, ok := c.pending[p.SequenceID]
	if !ok {
		return
	}
	if _, err := c.table.Resolve(p.SequenceID); err != nil {
		return
	}
	delete(c.pending, p.SequenceID)
	op.completion(p, true)
}

// Tick drives retry/timeout bookkeeping (spec.md §4.3.1): resend identical
// frames on timeout, or fire TIMED_OUT once retries are exhausted.
func (c *Controller) Tick() error {
	for _, r := range c.table.Tick() {
		seq := r.Key.(avdecc.SequenceID)
		if r.Resend {
			if err := c.send.SendACMP(r.Entry.Payload); err != nil {
				return err
			}
			continue
		}
		if r.Expired {
			if op, ok := c.pending[seq]; ok {
				delete(c.pending, seq)
				op.completion(PDU{SequenceID: seq, Status: StatusTimedOut}, false)
			}
		}
	}
	return nil
}
