package adp

import (
	"errors"
	"time"

	"github.com/looplab/fsm"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
)

// Advertising states and transitions (spec.md §4.2.1):
// IDLE -> ADVERTISE (periodic) -> DEPARTING (one-shot on shutdown).
const (
	StateIdle      = "idle"
	StateAdvertise = "advertise"
	StateDeparting = "departing"

	evStart      = "start"
	evTick       = "tick"
	evChange     = "change"
	evStop       = "stop"
	evRediscover = "rediscover"
)

// DefaultAdvertiseInterval is the spec.md §4.2.1 default periodic interval.
const DefaultAdvertiseInterval = 2 * time.Second

// DefaultValidTimeSeconds is the spec.md §4.2.1 default (wire value 31 -> 62s).
const DefaultValidTimeSeconds = 62

// Snapshot is the advertised entity state (spec.md §3.3 ENTITY descriptor
// fields plus §3.4 dynamic state) used to build each ENTITY_AVAILABLE frame.
type Snapshot struct {
	EntityID                avdecc.EntityID
	EntityModelID           avdecc.EntityModelID
	EntityCapabilities      avdecc.EntityCapabilities
	TalkerStreamSources     uint16
	TalkerCapabilities      avdecc.TalkerCapabilities
	ListenerStreamSinks     uint16
	ListenerCapabilities    avdecc.ListenerCapabilities
	ControllerCapabilities  avdecc.ControllerCapabilities
	GptpGrandmasterID       uint64
	GptpDomainNumber        uint8
	CurrentConfigurationIdx uint16
	IdentifyControlIndex    uint16
	InterfaceIndex          uint16
	AssociationID           avdecc.AssociationID
}

// Sender transmits an encoded ADP frame to the fixed multicast destination.
// Implemented by the engine's NetworkInterface adapter.
type Sender interface {
	SendADP(frame []byte) error
}

// Advertiser drives the local entity's advertising state machine (spec.md
// §4.2.1) on top of a looplab/fsm.FSM, the same state-machine idiom bbsim
// uses for its OltDevice.InternalState/OperState.
type Advertiser struct {
	fsm   *fsm.FSM
	clock clock.Clock
	log   clog.Clog
	send  Sender

	snapshot Snapshot
	interval time.Duration

	availableIndex  avdecc.AvailableIndex
	validTimeWire   uint8
	nextAdvertiseAt time.Time
}

// NewAdvertiser builds an Advertiser in the idle state.
func NewAdvertiser(snapshot Snapshot, send Sender, clk clock.Clock, log clog.Clog) *Advertiser {
	a := &Advertiser{
		clock:         clk,
		log:           log,
		send:          send,
		snapshot:      snapshot,
		interval:      DefaultAdvertiseInterval,
		validTimeWire: ValidTimeFromSeconds(DefaultValidTimeSeconds),
	}
	a.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StateAdvertise},
			{Name: evTick, Src: []string{StateAdvertise}, Dst: StateAdvertise},
			{Name: evChange, Src: []string{StateAdvertise}, Dst: StateAdvertise},
			{Name: evRediscover, Src: []string{StateAdvertise}, Dst: StateAdvertise},
			{Name: evStop, Src: []string{StateAdvertise, StateIdle}, Dst: StateDeparting},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				a.log.Debug("advertiser state %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
	return a
}

// SetInterval overrides the periodic advertise interval (default 2s).
func (a *Advertiser) SetInterval(d time.Duration) { a.interval = d }

// SetValidTimeSeconds overrides the advertised valid_time, clamped to the
// 5-bit wire range (0..62s).
func (a *Advertiser) SetValidTimeSeconds(seconds int) {
	a.validTimeWire = ValidTimeFromSeconds(seconds)
}

// AvailableIndex returns the current available_index.
func (a *Advertiser) AvailableIndex() avdecc.AvailableIndex { return a.availableIndex }

// Snapshot returns the advertised entity state currently in effect.
func (a *Advertiser) Snapshot() Snapshot { return a.snapshot }

// State returns the current FSM state name.
func (a *Advertiser) State() string { return a.fsm.Current() }

// Start enters ADVERTISE, emits ENTITY_AVAILABLE immediately, and schedules
// the next periodic tick (spec.md §4.2.1).
func (a *Advertiser) Start() error {
	if err := a.fsm.Event(nil, evStart); err != nil {
		return err
	}
	return a.emit(EntityAvailable)
}

// Tick fires the periodic readvertisement when now has reached
// nextAdvertiseAt. Periodic readvertisement does not change available_index
// (spec.md §4.2.1).
func (a *Advertiser) Tick() error {
	if a.fsm.Current() != StateAdvertise {
		return nil
	}
	now := a.clock.Now()
	if now.Before(a.nextAdvertiseAt) {
		return nil
	}
	if err := a.fireSelf(evTick); err != nil {
		return err
	}
	return a.emit(EntityAvailable)
}

// NotifyStateChange reports an observable state change (spec.md §4.2.1's
// list: configuration change, acquire/lock transitions, entity capabilities
// change, stream format change, stream start/stop, association_id update,
// grandmaster change). It increments available_index exactly once, emits
// ENTITY_AVAILABLE immediately, and resets the periodic timer.
func (a *Advertiser) NotifyStateChange() error {
	if a.fsm.Current() != StateAdvertise {
		return nil
	}
	a.availableIndex++
	if err := a.fireSelf(evChange); err != nil {
		return err
	}
	return a.emit(EntityAvailable)
}

// HandleDiscoveryRequest answers an ENTITY_DISCOVERY_REQUEST addressed at
// entityID (spec.md §4.2.3): entityID zero means "global", anything else
// must match the local entity or is ignored.
func (a *Advertiser) HandleDiscoveryRequest(entityID avdecc.EntityID) error {
	if a.fsm.Current() != StateAdvertise {
		return nil
	}
	if entityID != 0 && entityID != a.snapshot.EntityID {
		return nil
	}
	if err := a.fireSelf(evRediscover); err != nil {
		return err
	}
	return a.emit(EntityAvailable)
}

// Stop emits one ENTITY_DEPARTING with valid_time=0 and transitions to IDLE
// (modeled as reaching StateDeparting; a subsequent Start() re-enters
// StateAdvertise the way spec.md describes IDLE as the resting state).
func (a *Advertiser) Stop() error {
	if a.fsm.Current() == StateIdle || a.fsm.Current() == StateDeparting {
		return nil
	}
	if err := a.fsm.Event(nil, evStop); err != nil {
		return err
	}
	pdu := a.buildPDU(EntityDeparting)
	pdu.ValidTime = 0
	frame, err := pdu.Encode()
	if err != nil {
		return err
	}
	if err := a.send.SendADP(frame); err != nil {
		return err
	}
	a.fsm.SetState(StateIdle)
	return nil
}

// fireSelf fires an ADVERTISE -> ADVERTISE event. looplab/fsm reports a
// transition into the current state as NoTransitionError, which is expected
// here and not treated as a failure.
func (a *Advertiser) fireSelf(ev string) error {
	var noTransition fsm.NoTransitionError
	if err := a.fsm.Event(nil, ev); err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

func (a *Advertiser) emit(mt MessageType) error {
	pdu := a.buildPDU(mt)
	frame, err := pdu.Encode()
	if err != nil {
		return err
	}
	if err := a.send.SendADP(frame); err != nil {
		return err
	}
	a.nextAdvertiseAt = a.clock.Now().Add(a.interval)
	return nil
}

func (a *Advertiser) buildPDU(mt MessageType) PDU {
	s := a.snapshot
	return PDU{
		MessageType:             mt,
		EntityID:                s.EntityID,
		EntityModelID:           s.EntityModelID,
		EntityCapabilities:      s.EntityCapabilities,
		TalkerStreamSources:     s.TalkerStreamSources,
		TalkerCapabilities:      s.TalkerCapabilities,
		ListenerStreamSinks:     s.ListenerStreamSinks,
		ListenerCapabilities:    s.ListenerCapabilities,
		ControllerCapabilities:  s.ControllerCapabilities,
		AvailableIndex:          a.availableIndex,
		GptpGrandmasterID:       s.GptpGrandmasterID,
		GptpDomainNumber:        s.GptpDomainNumber,
		CurrentConfigurationIdx: s.CurrentConfigurationIdx,
		IdentifyControlIndex:    s.IdentifyControlIndex,
		InterfaceIndex:          s.InterfaceIndex,
		AssociationID:           s.AssociationID,
		ValidTime:               a.validTimeWire,
	}
}

// UpdateSnapshot replaces the advertised entity snapshot (e.g. after a
// SET_CONFIGURATION or association_id update). Callers must also invoke
// NotifyStateChange to advertise the change per spec.md §4.2.1.
func (a *Advertiser) UpdateSnapshot(s Snapshot) { a.snapshot = s }
