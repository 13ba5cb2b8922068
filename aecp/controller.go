package aecp

import (
	"time"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/inflight"
)

// DefaultCommandTimeout and DefaultMaxRetries are the spec.md §4.4.3
// defaults: 250 ms per attempt, two retries (three attempts total).
const (
	DefaultCommandTimeout = 250 * time.Millisecond
	DefaultMaxRetries     = 2
)

// Sender transmits an encoded AECP frame to the engine's L2 transport.
type Sender interface {
	SendAECP(frame []byte) error
}

// Completion is invoked exactly once per controller command: either with the
// target's response PDU, or ok=false and status=StatusTimedOut once retries
// are exhausted (spec.md §4.4.3, §4.4.5).
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

// Controller drives the local application's AECP controller role (spec.md
// §4.4.3): send_aem_command keyed by sequence_id, backed by the shared
// inflight.Table retry machinery.
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

// SendCommand issues an AEM_COMMAND to target and tracks it for retry/timeout
// (spec.md §4.4.3).
func (c *Controller) SendCommand(target avdecc.EntityID, cmdType CommandType, data []byte, done Completion) (avdecc.SequenceID, error) {
	seq := c.nextSeq()
	p := PDU{
		MessageType:         AEMCommand,
		TargetEntityID:      target,
		ControllerEntityID:  c.entityID,
		SequenceID:          seq,
		CommandType:         cmdType,
		CommandSpecificData: data,
	}
	frame, err := p.Encode()
	if err != nil {
		return 0, err
	}
	c.pending[seq] = pendingOp{completion: done}
	c.table.Insert(seq, uint64(target), int(cmdType), frame)
	if err := c.send.SendAECP(frame); err != nil {
		return 0, err
	}
	return seq, nil
}

// HandleResponse matches an incoming AEM_RESPONSE to its pending command and
// invokes its completion exactly once. Unsolicited notifications (no pending
// entry) and duplicate responses are dropped silently (spec.md §4.4.1,
// §4.4.5).
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

// Tick drives retry/timeout bookkeeping (spec.md §4.4.5): resend identical
// frames on timeout, or fire TIMED_OUT once retries are exhausted.
func (c *Controller) Tick() error {
	for _, r := range c.table.Tick() {
		seq := r.Key.(avdecc.SequenceID)
		if r.Resend {
			if err := c.send.SendAECP(r.Entry.Payload); err != nil {
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
