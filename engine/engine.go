package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zarfld/go-avdecc/acmp"
	"github.com/zarfld/go-avdecc/adp"
	"github.com/zarfld/go-avdecc/aecp"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/avtp"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// ErrSendFailed is the sentinel surfaced when the L2 transport rejects a
// frame a second time after the one permitted requeue (spec.md §7
// "SendFailed").
var ErrSendFailed = errors.New("engine: send failed")

// ErrUnknownSubtype is returned (and logged, never fatal) when an ingress
// frame's AVTP subtype matches none of ADP/ACMP/AECP.
var ErrUnknownSubtype = errors.New("engine: unknown avtp subtype")

// Params bundles everything New needs to wire one local entity's engine.
type Params struct {
	Config    Config
	Store     *entitymodel.Store
	Snapshot  adp.Snapshot
	Interface NetworkInterface
	Clock     clock.Clock
	Log       clog.Clog

	StreamInputCount  uint16
	StreamOutputCount uint16
	DiscoveryEvents   adp.DiscoveryEvents
}

// Engine is the single cooperative scheduler (C6, spec.md §4.6) owning the
// ADP, ACMP and AECP engines, the entity model store, and the bounded send
// queue for one local entity.
type Engine struct {
	mu sync.Mutex

	iface NetworkInterface
	clock clock.Clock
	log   clog.Clog
	cfg   Config

	store *entitymodel.Store

	entityID avdecc.EntityID

	advertiser *adp.Advertiser
	discoverer *adp.Discoverer

	acmpController *acmp.Controller
	talker         *acmp.Talker
	listener       *acmp.Listener

	aecpController *aecp.Controller
	dispatcher     *aecp.Dispatcher

	queue *sendQueue

	stopped bool
}

// New builds an Engine in the stopped/idle state; call Run to start the
// scheduler (which also enters the advertiser's ADVERTISE state).
func New(p Params) (*Engine, error) {
	cfg := p.Config
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if p.Store == nil {
		return nil, errors.New("engine: Store is required")
	}
	if p.Interface == nil {
		return nil, errors.New("engine: Interface is required")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}

	e := &Engine{
		iface: p.Interface,
		clock: clk,
		log:   p.Log,
		cfg:   cfg,
		store: p.Store,
		queue: newSendQueue(cfg.SendQueueSize),
	}

	entityID := p.Snapshot.EntityID
	e.entityID = entityID

	e.advertiser = adp.NewAdvertiser(p.Snapshot, adpSender{e}, clk, p.Log)
	e.advertiser.SetInterval(cfg.AdvertiseInterval)

	e.discoverer = adp.NewDiscoverer(adpSender{e}, clk, p.Log, p.DiscoveryEvents)
	e.discoverer.SetInterval(cfg.DiscoveryInterval)

	e.acmpController = acmp.NewController(entityID, acmpSender{e}, clk, p.Log, cfg.ACMP)
	e.talker = acmp.NewTalker(entityID, acmpSender{e}, p.Log, p.StreamOutputCount)
	e.listener = acmp.NewListener(entityID, acmpSender{e}, clk, p.Log, p.StreamInputCount, cfg.TalkerTimeout)

	e.aecpController = aecp.NewController(entityID, aecpSender{e}, clk, p.Log, cfg.AECP)
	e.dispatcher = aecp.NewDispatcher(entityID, p.Store, aecpSender{e}, clk, p.Log, func() {
		s := e.advertiser.Snapshot()
		s.CurrentConfigurationIdx = e.store.Entity().CurrentConfiguration
		e.advertiser.UpdateSnapshot(s)
		_ = e.advertiser.NotifyStateChange()
	})

	return e, nil
}

// Start enters the advertiser's ADVERTISE state and queues the first
// ENTITY_AVAILABLE (spec.md §4.2.1). Run calls Start automatically; it is
// exported for callers that drive the tick loop themselves instead of Run.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertiser.Start()
}

// Run drives the fixed-tick scheduler until ctx is cancelled, at which point
// it calls Stop and returns its result. Run is the engine's single
// cooperative loop (spec.md §5): every application-facing accessor method
// below takes the same mutex Run's tick holds, so callers never need to be
// on a specific goroutine.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return e.Stop()
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

// Tick runs exactly one scheduler pass (spec.md §4.6 steps 1-4): drain
// ingress, run every timer, expire stale locks, flush the send queue.
// Exported so tests and embedders can single-step the scheduler instead of
// calling Run.
func (e *Engine) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick()
}

func (e *Engine) tick() error {
	e.drainIngress()

	if err := e.advertiser.Tick(); err != nil {
		return err
	}
	if err := e.discoverer.Tick(); err != nil {
		return err
	}
	if err := e.acmpController.Tick(); err != nil {
		return err
	}
	if err := e.listener.Tick(); err != nil {
		return err
	}
	if err := e.aecpController.Tick(); err != nil {
		return err
	}

	e.store.ExpireLock(e.clock.Now())

	return e.flushQueue()
}

// drainIngress consumes every buffered ingress frame (spec.md §4.6 step 1).
// Decode and dispatch errors are logged and the offending frame dropped;
// per spec.md §7 a DecodeError never changes engine state and is never
// fatal.
func (e *Engine) drainIngress() {
	for {
		frame, ok := e.iface.Receive()
		if !ok {
			return
		}
		if err := e.handleFrame(frame); err != nil {
			e.log.Warn("engine: dropped frame: %v", err)
		}
	}
}

func (e *Engine) handleFrame(frame []byte) error {
	hdr, err := avtp.DecodeHeader(frame)
	if err != nil {
		return err
	}
	switch hdr.Subtype {
	case avtp.SubtypeADP:
		return e.handleADP(frame)
	case avtp.SubtypeACMP:
		return e.handleACMP(frame)
	case avtp.SubtypeAECP:
		return e.handleAECP(frame)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSubtype, hdr.Subtype)
	}
}

func (e *Engine) handleADP(frame []byte) error {
	p, err := adp.Decode(frame)
	if err != nil {
		return err
	}
	switch p.MessageType {
	case adp.EntityAvailable:
		e.discoverer.HandleEntityAvailable(p)
	case adp.EntityDeparting:
		e.discoverer.HandleEntityDeparting(p)
	case adp.EntityDiscover:
		return e.advertiser.HandleDiscoveryRequest(p.EntityID)
	}
	return nil
}

// handleACMP routes one decoded ACMP PDU. Every frame reaches every entity
// on the shared multicast address (spec.md §6.1), so a command not
// addressed to this entity's talker/listener role is silently ignored here
// rather than handed to HandleConnectTxCommand/HandleConnectRxCommand and
// friends, which would otherwise answer on behalf of an entity_id that
// isn't theirs.
func (e *Engine) handleACMP(frame []byte) error {
	p, err := acmp.Decode(frame)
	if err != nil {
		return err
	}
	switch p.MessageType {
	case acmp.ConnectTxCommand:
		if p.TalkerEntityID != e.entityID {
			return nil
		}
		return e.talker.HandleConnectTxCommand(p)
	case acmp.DisconnectTxCommand:
		if p.TalkerEntityID != e.entityID {
			return nil
		}
		return e.talker.HandleDisconnectTxCommand(p)
	case acmp.GetTxStateCommand:
		if p.TalkerEntityID != e.entityID {
			return nil
		}
		return e.talker.HandleGetTxState(p, acmp.GetTxStateResponse)
	case acmp.GetTxConnectionCommand:
		if p.TalkerEntityID != e.entityID {
			return nil
		}
		return e.talker.HandleGetTxState(p, acmp.GetTxConnectionResponse)
	case acmp.ConnectRxCommand:
		if p.ListenerEntityID != e.entityID {
			return nil
		}
		return e.listener.HandleConnectRxCommand(p)
	case acmp.DisconnectRxCommand:
		if p.ListenerEntityID != e.entityID {
			return nil
		}
		return e.listener.HandleDisconnectRxCommand(p)
	case acmp.GetRxStateCommand:
		if p.ListenerEntityID != e.entityID {
			return nil
		}
		return e.listener.HandleGetRxState(p)
	case acmp.ConnectTxResponse, acmp.DisconnectTxResponse:
		return e.listener.HandleTalkerResponse(p)
	default:
		if p.MessageType.IsResponse() {
			e.acmpController.HandleResponse(p)
		}
	}
	return nil
}

func (e *Engine) handleAECP(frame []byte) error {
	p, err := aecp.Decode(frame)
	if err != nil {
		return err
	}
	switch p.MessageType {
	case aecp.AEMCommand:
		resp, ok := e.dispatcher.Handle(p)
		if !ok {
			return nil
		}
		respFrame, err := resp.Encode()
		if err != nil {
			return err
		}
		return aecpSender{e}.SendAECP(respFrame)
	case aecp.AEMResponse:
		e.aecpController.HandleResponse(p)
	}
	return nil
}

// flushQueue transmits every queued frame in FIFO order (spec.md §4.6
// implicitly, §5 send path). A send failure is requeued exactly once; a
// second failure for the same frame surfaces ErrSendFailed (spec.md §7).
func (e *Engine) flushQueue() error {
	for _, f := range e.queue.Drain() {
		if err := e.iface.Send(avdecc.MulticastDestination, f.payload); err != nil {
			if f.retried {
				return fmt.Errorf("%w: %v", ErrSendFailed, err)
			}
			f.retried = true
			e.queue.Push(f)
		}
	}
	return nil
}

// Stop emits ENTITY_DEPARTING, drains pending sends, and halts (spec.md §5
// "Cancellation"). Calling Stop more than once is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true
	if err := e.advertiser.Stop(); err != nil {
		return err
	}
	return e.flushQueue()
}

// Application-facing accessors ---------------------------------------------
//
// Every call below acquires the same mutex the tick loop holds (spec.md §5:
// "one coarse sync.Mutex at the engine.Engine boundary"), so callers may
// invoke these from any goroutine without racing the scheduler.

// Discover broadcasts an ENTITY_DISCOVERY_REQUEST (target zero = global).
func (e *Engine) Discover(target avdecc.EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discoverer.Discover(target)
}

// Lookup returns the discovery table entry for a remote entity.
func (e *Engine) Lookup(id avdecc.EntityID) (adp.RemoteEntity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discoverer.Lookup(id)
}

// KnownEntities returns every remote entity id currently in the discovery
// table.
func (e *Engine) KnownEntities() []avdecc.EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discoverer.Entities()
}

// ConnectStream issues an ACMP CONNECT_RX_COMMAND (spec.md §4.3.1).
func (e *Engine) ConnectStream(talker avdecc.EntityID, tui uint16, listener avdecc.EntityID, lui uint16, done acmp.Completion) (avdecc.SequenceID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acmpController.ConnectStream(talker, tui, listener, lui, done)
}

// DisconnectStream issues an ACMP DISCONNECT_RX_COMMAND (spec.md §4.3.1).
func (e *Engine) DisconnectStream(talker avdecc.EntityID, tui uint16, listener avdecc.EntityID, lui uint16, done acmp.Completion) (avdecc.SequenceID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acmpController.DisconnectStream(talker, tui, listener, lui, done)
}

// SendAECPCommand issues an arbitrary AECP command against target (spec.md
// §4.4.3); most applications use Enumerate instead for the full walk.
func (e *Engine) SendAECPCommand(target avdecc.EntityID, cmdType aecp.CommandType, data []byte, done aecp.Completion) (avdecc.SequenceID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aecpController.SendCommand(target, cmdType, data, done)
}

// Enumerate drives the full controller enumeration workflow against target
// (spec.md §4.4.6).
func (e *Engine) Enumerate(target avdecc.EntityID, onDone func(*aecp.EnumerationResult)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	enumerator := aecp.NewEnumerator(e.aecpController, target)
	return enumerator.Start(onDone)
}

// Store returns the local entity model store backing this engine's AECP
// dispatcher.
func (e *Engine) Store() *entitymodel.Store { return e.store }

// NotifyStateChange re-advertises immediately and bumps available_index,
// for application-driven mutations that bypass the AECP dispatcher (e.g. an
// operator changing the association_id out of band).
func (e *Engine) NotifyStateChange() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertiser.NotifyStateChange()
}
