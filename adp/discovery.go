package adp

import (
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
)

// Discovery states (spec.md §4.2.2): WAITING -> DISCOVER -> DISCOVERED (cyclic).
const (
	StateWaiting    = "waiting"
	StateDiscover   = "discover"
	StateDiscovered = "discovered"

	evDiscoverDue = "discover_due"
	evSent        = "sent"
)

// DefaultDiscoveryInterval is the spec.md §4.2.2 default.
const DefaultDiscoveryInterval = 2 * time.Second

// RemoteEntity is the discovery table entry for one remote entity (spec.md
// §3.4 "Per remote entity").
type RemoteEntity struct {
	Snapshot       Snapshot
	ValidTimeWire  uint8
	LastSeen       time.Time
	ExpiresAt      time.Time
	AvailableIndex avdecc.AvailableIndex
}

// DiscoveryEvents are the callbacks a controller application registers to
// observe discovery table changes (spec.md §4.2.3).
type DiscoveryEvents struct {
	EntityDiscovered   func(avdecc.EntityID, RemoteEntity)
	EntityUpdated      func(avdecc.EntityID, RemoteEntity)
	EntityRediscovered func(avdecc.EntityID, RemoteEntity)
	EntityDeparted     func(avdecc.EntityID)
	EntityTimeout      func(avdecc.EntityID)
}

// Discoverer drives the controller-side discovery state machine and remote
// entity table.
type Discoverer struct {
	fsm   *fsm.FSM
	clock clock.Clock
	log   clog.Clog
	send  Sender
	ev    DiscoveryEvents

	interval       time.Duration
	nextDiscoverAt time.Time

	mu      sync.Mutex
	remotes map[avdecc.EntityID]*RemoteEntity
}

// NewDiscoverer builds a Discoverer in the WAITING state.
func NewDiscoverer(send Sender, clk clock.Clock, log clog.Clog, ev DiscoveryEvents) *Discoverer {
	d := &Discoverer{
		clock:    clk,
		log:      log,
		send:     send,
		ev:       ev,
		interval: DefaultDiscoveryInterval,
		remotes:  make(map[avdecc.EntityID]*RemoteEntity),
	}
	d.fsm = fsm.NewFSM(
		StateWaiting,
		fsm.Events{
			{Name: evDiscoverDue, Src: []string{StateWaiting, StateDiscovered}, Dst: StateDiscover},
			{Name: evSent, Src: []string{StateDiscover}, Dst: StateDiscovered},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				d.log.Debug("discoverer state %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
	return d
}

// SetInterval overrides the discovery re-broadcast interval.
func (d *Discoverer) SetInterval(interval time.Duration) { d.interval = interval }

// Discover emits an ENTITY_DISCOVERY_REQUEST for target (zero = global),
// the explicit operation a controller application calls in addition to the
// automatic periodic broadcast.
func (d *Discoverer) Discover(target avdecc.EntityID) error {
	if d.fsm.Current() != StateDiscover {
		if err := d.fsm.Event(nil, evDiscoverDue); err != nil {
			return err
		}
	}
	pdu := PDU{MessageType: EntityDiscover, EntityID: target}
	frame, err := pdu.Encode()
	if err != nil {
		return err
	}
	if err := d.send.SendADP(frame); err != nil {
		return err
	}
	d.nextDiscoverAt = d.clock.Now().Add(d.interval)
	return d.fsm.Event(nil, evSent)
}

// Tick advances the discovery cycle (spec.md §4.2.2): in DISCOVERED, expire
// timed-out entities and re-enter DISCOVER once the interval elapses.
func (d *Discoverer) Tick() error {
	now := d.clock.Now()
	d.expireTimedOut(now)

	switch d.fsm.Current() {
	case StateWaiting:
		if !now.Before(d.nextDiscoverAt) {
			return d.Discover(0)
		}
	case StateDiscovered:
		if !now.Before(d.nextDiscoverAt) {
			return d.Discover(0)
		}
	}
	return nil
}

func (d *Discoverer) expireTimedOut(now time.Time) {
	d.mu.Lock()
	var timedOut []avdecc.EntityID
	for id, r := range d.remotes {
		if !now.Before(r.ExpiresAt) {
			timedOut = append(timedOut, id)
			delete(d.remotes, id)
		}
	}
	d.mu.Unlock()

	for _, id := range timedOut {
		if d.ev.EntityTimeout != nil {
			d.ev.EntityTimeout(id)
		}
	}
}

// HandleEntityAvailable ingests an ENTITY_AVAILABLE frame (spec.md §4.2.3).
func (d *Discoverer) HandleEntityAvailable(p PDU) {
	now := d.clock.Now()
	validSeconds := time.Duration(p.ValidTimeSeconds()) * time.Second

	d.mu.Lock()
	existing, known := d.remotes[p.EntityID]
	r := &RemoteEntity{
		Snapshot: Snapshot{
			EntityID:                p.EntityID,
			EntityModelID:           p.EntityModelID,
			EntityCapabilities:      p.EntityCapabilities,
			TalkerStreamSources:     p.TalkerStreamSources,
			TalkerCapabilities:      p.TalkerCapabilities,
			ListenerStreamSinks:     p.ListenerStreamSinks,
			ListenerCapabilities:    p.ListenerCapabilities,
			ControllerCapabilities:  p.ControllerCapabilities,
			GptpGrandmasterID:       p.GptpGrandmasterID,
			GptpDomainNumber:        p.GptpDomainNumber,
			CurrentConfigurationIdx: p.CurrentConfigurationIdx,
			IdentifyControlIndex:    p.IdentifyControlIndex,
			InterfaceIndex:          p.InterfaceIndex,
			AssociationID:           p.AssociationID,
		},
		ValidTimeWire:  p.ValidTime,
		LastSeen:       now,
		ExpiresAt:      now.Add(2 * validSeconds),
		AvailableIndex: p.AvailableIndex,
	}
	d.remotes[p.EntityID] = r
	d.mu.Unlock()

	switch {
	case !known:
		if d.ev.EntityDiscovered != nil {
			d.ev.EntityDiscovered(p.EntityID, *r)
		}
	case p.AvailableIndex < existing.AvailableIndex:
		if d.ev.EntityRediscovered != nil {
			d.ev.EntityRediscovered(p.EntityID, *r)
		}
	case p.AvailableIndex != existing.AvailableIndex:
		if d.ev.EntityUpdated != nil {
			d.ev.EntityUpdated(p.EntityID, *r)
		}
	}
}

// HandleEntityDeparting ingests an ENTITY_DEPARTING frame.
func (d *Discoverer) HandleEntityDeparting(p PDU) {
	d.mu.Lock()
	_, known := d.remotes[p.EntityID]
	delete(d.remotes, p.EntityID)
	d.mu.Unlock()

	if known && d.ev.EntityDeparted != nil {
		d.ev.EntityDeparted(p.EntityID)
	}
}

// Lookup returns the known state of a remote entity.
func (d *Discoverer) Lookup(id avdecc.EntityID) (RemoteEntity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.remotes[id]
	if !ok {
		return RemoteEntity{}, false
	}
	return *r, true
}

// Entities returns a snapshot of all known remote entity ids.
func (d *Discoverer) Entities() []avdecc.EntityID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]avdecc.EntityID, 0, len(d.remotes))
	for id := range d.remotes {
		ids = append(ids, id)
	}
	return ids
}
