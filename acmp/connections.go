package acmp

import (
	"encoding/binary"
	"sync"

	"github.com/zarfld/go-avdecc/avdecc"
)

// TalkerKey identifies one talker stream output (spec.md §3.5).
type TalkerKey struct {
	EntityID avdecc.EntityID
	UniqueID uint16
}

// ListenerKey identifies one listener stream input (spec.md §3.5).
type ListenerKey struct {
	EntityID avdecc.EntityID
	UniqueID uint16
}

// TalkerStream is the talker-side connection record for one stream output.
// connection_count always equals len(Listeners) (spec.md §3.5 invariant).
type TalkerStream struct {
	StreamID        avdecc.StreamID
	StreamDestMAC   avdecc.MacAddress
	StreamVlanID    uint16
	Exclusive       bool
	Listeners       map[ListenerKey]struct{}
	StreamingActive bool
}

// ConnectionCount reports the number of bound listeners.
func (s *TalkerStream) ConnectionCount() uint16 { return uint16(len(s.Listeners)) }

// ListenerStream is the listener-side connection record for one stream
// input. A listener input is bound to at most one talker output at a time
// (spec.md §3.5 invariant).
type ListenerStream struct {
	Connected       bool
	Talker          TalkerKey
	StreamID        avdecc.StreamID
	StreamDestMAC   avdecc.MacAddress
	StreamVlanID    uint16
	ConnectionCount uint16
	StreamingActive bool
}

// TalkerTable tracks every stream output on the local entity when it is
// acting as a talker.
type TalkerTable struct {
	mu      sync.Mutex
	streams map[TalkerKey]*TalkerStream
}

// NewTalkerTable builds an empty TalkerTable.
func NewTalkerTable() *TalkerTable {
	return &TalkerTable{streams: make(map[TalkerKey]*TalkerStream)}
}

// Get returns the stream record for key, creating it with a deterministic
// stream_id/dest_mac on first use (MAAP allocation is out of scope per
// spec.md §9 Open Questions; this derivation is a deterministic placeholder).
func (t *TalkerTable) Get(key TalkerKey) *TalkerStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[key]
	if !ok {
		s = &TalkerStream{
			StreamID:      DeriveStreamID(key.EntityID, key.UniqueID),
			StreamDestMAC: DeriveStreamDestMAC(key.EntityID, key.UniqueID),
			Listeners:     make(map[ListenerKey]struct{}),
		}
		t.streams[key] = s
	}
	return s
}

// Bind adds lk to the talker stream's listener set and returns the updated
// connection_count.
func (t *TalkerTable) Bind(key TalkerKey, lk ListenerKey) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.getLocked(key)
	s.Listeners[lk] = struct{}{}
	return uint16(len(s.Listeners))
}

// Unbind removes lk from the talker stream's listener set; ok is false if lk
// was not bound.
func (t *TalkerTable) Unbind(key TalkerKey, lk ListenerKey) (count uint16, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, exists := t.streams[key]
	if !exists {
		return 0, false
	}
	if _, bound := s.Listeners[lk]; !bound {
		return uint16(len(s.Listeners)), false
	}
	delete(s.Listeners, lk)
	return uint16(len(s.Listeners)), true
}

// HasOtherListeners reports whether key has bound listeners other than
// exclude (spec.md §4.3.2 exclusivity check).
func (t *TalkerTable) HasOtherListeners(key TalkerKey, exclude ListenerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[key]
	if !ok {
		return false
	}
	for lk := range s.Listeners {
		if lk != exclude {
			return true
		}
	}
	return false
}

func (t *TalkerTable) getLocked(key TalkerKey) *TalkerStream {
	s, ok := t.streams[key]
	if !ok {
		s = &TalkerStream{
			StreamID:      DeriveStreamID(key.EntityID, key.UniqueID),
			StreamDestMAC: DeriveStreamDestMAC(key.EntityID, key.UniqueID),
			Listeners:     make(map[ListenerKey]struct{}),
		}
		t.streams[key] = s
	}
	return s
}

// ListenerTable tracks every stream input on the local entity when it is
// acting as a listener.
type ListenerTable struct {
	mu      sync.Mutex
	streams map[ListenerKey]*ListenerStream
}

// NewListenerTable builds an empty ListenerTable.
func NewListenerTable() *ListenerTable {
	return &ListenerTable{streams: make(map[ListenerKey]*ListenerStream)}
}

// Get returns the (possibly unconnected) stream record for key.
func (l *ListenerTable) Get(key ListenerKey) *ListenerStream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(key)
}

func (l *ListenerTable) getLocked(key ListenerKey) *ListenerStream {
	s, ok := l.streams[key]
	if !ok {
		s = &ListenerStream{}
		l.streams[key] = s
	}
	return s
}

// Connect binds key to the given talker stream state.
func (l *ListenerTable) Connect(key ListenerKey, talker TalkerKey, streamID avdecc.StreamID, mac avdecc.MacAddress, vlan, count uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.getLocked(key)
	s.Connected = true
	s.Talker = talker
	s.StreamID = streamID
	s.StreamDestMAC = mac
	s.StreamVlanID = vlan
	s.ConnectionCount = count
}

// Disconnect clears key's binding; ok is false if it was not connected.
func (l *ListenerTable) Disconnect(key ListenerKey) (TalkerKey, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.streams[key]
	if !ok || !s.Connected {
		return TalkerKey{}, false
	}
	talker := s.Talker
	*s = ListenerStream{}
	return talker, true
}

// DeriveStreamID deterministically derives a stream_id from the talker
// entity id and unique id (MAAP is out of scope, spec.md §9 Open Questions):
// the six octets of DeriveStreamDestMAC followed by the 16-bit unique id.
func DeriveStreamID(entityID avdecc.EntityID, uniqueID uint16) avdecc.StreamID {
	mac := DeriveStreamDestMAC(entityID, uniqueID)
	var b [8]byte
	copy(b[:6], mac[:])
	binary.BigEndian.PutUint16(b[6:8], uniqueID)
	return avdecc.StreamID(binary.BigEndian.Uint64(b[:]))
}

// DeriveStreamDestMAC deterministically derives a multicast stream
// destination MAC from the talker entity id and unique id, following the
// IEEE 1722 multicast stream addressing convention used in spec.md S3
// (`91:E0:F0:00:AA:00` style addresses).
func DeriveStreamDestMAC(entityID avdecc.EntityID, uniqueID uint16) avdecc.MacAddress {
	var mac avdecc.MacAddress
	mac[0], mac[1], mac[2] = 0x91, 0xE0, 0xF0
	var low [4]byte
	binary.BigEndian.PutUint32(low[:], uint32(entityID))
	mac[3] = low[2]
	mac[4] = low[3]
	mac[5] = byte(uniqueID)
	return mac
}
