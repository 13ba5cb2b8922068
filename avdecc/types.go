// Package avdecc holds the primitive wire types shared by every protocol
// package in this module: identifiers, the multicast MAC, and the
// capability bitmasks carried in ADP and the entity descriptor
// (spec.md §3.1-§3.2).
package avdecc

import "fmt"

// EntityID, EntityModelID, StreamID and AssociationID are EUI-64 identifiers,
// big-endian on the wire. Zero means "unspecified/any" in ADP discovery
// requests and some ACMP fields.
type (
	EntityID      uint64
	EntityModelID uint64
	StreamID      uint64
	AssociationID uint64
)

// SequenceID is a 16-bit monotonically increasing counter, maintained
// independently per protocol (ACMP controller, AECP controller).
type SequenceID uint16

// AvailableIndex is the 32-bit counter an advertising entity owns,
// incremented exactly once per observable state change (spec.md §4.2.1).
type AvailableIndex uint32

// MacAddress is a 6-octet Ethernet address.
type MacAddress [6]byte

// MulticastDestination is the fixed destination MAC used for all
// ADP/ACMP/AECP traffic (spec.md §3.1, §6.1).
var MulticastDestination = MacAddress{0x91, 0xE0, 0xF0, 0x01, 0x00, 0x00}

// EtherType is the EtherType value used for all AVDECC frames (spec.md §6.1).
const EtherType = 0x22F0

func (m MacAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the all-zero address.
func (m MacAddress) IsZero() bool {
	return m == MacAddress{}
}

// EntityCapabilities is the 32-bit capability bitmask carried in ADP and the
// ENTITY descriptor (spec.md §3.2).
type EntityCapabilities uint32

const (
	EntityCapEFUMode                      EntityCapabilities = 1 << 0
	EntityCapAddressAccessSupported       EntityCapabilities = 1 << 1
	EntityCapGatewayEntity                EntityCapabilities = 1 << 2
	EntityCapAEMSupported                 EntityCapabilities = 1 << 3
	EntityCapLegacyAVC                    EntityCapabilities = 1 << 4
	EntityCapAssociationIDSupported       EntityCapabilities = 1 << 5
	EntityCapAssociationIDValid           EntityCapabilities = 1 << 6
	EntityCapVendorUniqueSupported        EntityCapabilities = 1 << 7
	EntityCapClassASupported              EntityCapabilities = 1 << 8
	EntityCapClassBSupported              EntityCapabilities = 1 << 9
	EntityCapGPTPSupported                EntityCapabilities = 1 << 10
	EntityCapAEMAuthenticationSupported   EntityCapabilities = 1 << 11
	EntityCapAEMAuthenticationRequired    EntityCapabilities = 1 << 12
	EntityCapAEMPersistentAcquireSupport  EntityCapabilities = 1 << 13
	EntityCapAEMIdentifyControlIndexValid EntityCapabilities = 1 << 14
	EntityCapAEMInterfaceIndexValid       EntityCapabilities = 1 << 15
	EntityCapGeneralControllerIgnore      EntityCapabilities = 1 << 16
	EntityCapEntityNotReady               EntityCapabilities = 1 << 17
	EntityCapACMPAcquireWithLeave         EntityCapabilities = 1 << 18
	EntityCapACMPAuthorizationRequired    EntityCapabilities = 1 << 19
	EntityCapSupportsUDPv4_2016           EntityCapabilities = 1 << 20
	EntityCapSupportsUDPv6_2016           EntityCapabilities = 1 << 21
)

func (c EntityCapabilities) Has(bit EntityCapabilities) bool { return c&bit != 0 }

// TalkerCapabilities is the 16-bit capability bitmask for talker streams
// (spec.md §3.2).
type TalkerCapabilities uint16

const (
	TalkerCapImplemented TalkerCapabilities = 1 << 0
	TalkerCapOtherSource TalkerCapabilities = 1 << 9
	TalkerCapControlSrc  TalkerCapabilities = 1 << 10
	TalkerCapMediaClkSrc TalkerCapabilities = 1 << 11
	TalkerCapSMPTESrc    TalkerCapabilities = 1 << 12
	TalkerCapMIDISrc     TalkerCapabilities = 1 << 13
	TalkerCapAudioSrc    TalkerCapabilities = 1 << 14
	TalkerCapVideoSrc    TalkerCapabilities = 1 << 15
)

func (c TalkerCapabilities) Has(bit TalkerCapabilities) bool { return c&bit != 0 }

// ListenerCapabilities is the 16-bit capability bitmask for listener streams
// (spec.md §3.2).
type ListenerCapabilities uint16

const (
	ListenerCapImplemented  ListenerCapabilities = 1 << 0
	ListenerCapOtherSink    ListenerCapabilities = 1 << 9
	ListenerCapControlSink  ListenerCapabilities = 1 << 10
	ListenerCapMediaClkSink ListenerCapabilities = 1 << 11
	ListenerCapSMPTESink    ListenerCapabilities = 1 << 12
	ListenerCapMIDISink     ListenerCapabilities = 1 << 13
	ListenerCapAudioSink    ListenerCapabilities = 1 << 14
	ListenerCapVideoSink    ListenerCapabilities = 1 << 15
)

func (c ListenerCapabilities) Has(bit ListenerCapabilities) bool { return c&bit != 0 }

// ControllerCapabilities is the 32-bit capability bitmask for controllers
// (spec.md §3.2).
type ControllerCapabilities uint32

const ControllerCapImplemented ControllerCapabilities = 1 << 0

func (c ControllerCapabilities) Has(bit ControllerCapabilities) bool { return c&bit != 0 }
