// Package adp implements ADP (AVDECC Discovery Protocol): the bit-exact PDU
// codec (spec.md §4.1.2) and the advertising/discovery state machines
// (spec.md §4.2).
package adp

import (
	"encoding/binary"
	"fmt"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/avtp"
)

// MessageType is the ADP 4-bit message_type enum.
type MessageType uint8

const (
	EntityAvailable MessageType = 0
	EntityDeparting MessageType = 1
	EntityDiscover  MessageType = 2
)

func (m MessageType) String() string {
	switch m {
	case EntityAvailable:
		return "ENTITY_AVAILABLE"
	case EntityDeparting:
		return "ENTITY_DEPARTING"
	case EntityDiscover:
		return "ENTITY_DISCOVERY_REQUEST"
	default:
		return fmt.Sprintf("MessageType(%d)", m)
	}
}

// PayloadSize is the fixed ADP payload size after the common header
// (spec.md §4.1.2).
const PayloadSize = 56

// PDUSize is the total ADP PDU size (spec.md testable property 3).
const PDUSize = avtp.HeaderSize + PayloadSize

// PDU is a decoded ADP message. EntityID lives in the shared header slot.
type PDU struct {
	MessageType             MessageType
	EntityID                avdecc.EntityID
	EntityModelID           avdecc.EntityModelID
	EntityCapabilities      avdecc.EntityCapabilities
	TalkerStreamSources     uint16
	TalkerCapabilities      avdecc.TalkerCapabilities
	ListenerStreamSinks     uint16
	ListenerCapabilities    avdecc.ListenerCapabilities
	ControllerCapabilities  avdecc.ControllerCapabilities
	AvailableIndex          avdecc.AvailableIndex
	GptpGrandmasterID       uint64
	GptpDomainNumber        uint8
	CurrentConfigurationIdx uint16
	IdentifyControlIndex    uint16
	InterfaceIndex          uint16
	AssociationID           avdecc.AssociationID
	// ValidTime is the 5-bit wire value (seconds/2, 0..31); see ValidTimeSeconds.
	ValidTime uint8
}

// ValidTimeSeconds converts the 5-bit wire valid_time to seconds (spec.md
// §4.2.1: valid_time on the wire is ceil(seconds/2), clamped to 5 bits).
func (p PDU) ValidTimeSeconds() int {
	return int(p.ValidTime) * 2
}

// ValidTimeFromSeconds computes the clamped 5-bit wire value for a given
// validity duration in seconds.
func ValidTimeFromSeconds(seconds int) uint8 {
	wire := (seconds + 1) / 2 // ceil(seconds/2)
	if wire < 0 {
		wire = 0
	}
	if wire > 31 {
		wire = 31
	}
	return uint8(wire)
}

// Encode serializes the PDU to exactly PDUSize bytes.
func (p PDU) Encode() ([]byte, error) {
	h := avtp.Header{
		Subtype:           avtp.SubtypeADP,
		Version:           avtp.Version,
		MessageType:       uint8(p.MessageType),
		ValidTimeOrStatus: p.ValidTime & 0x1F,
		ControlDataLength: PayloadSize,
		EntityID:          uint64(p.EntityID),
	}
	hdr, err := h.Encode()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, PDUSize)
	copy(buf[:avtp.HeaderSize], hdr)
	b := buf[avtp.HeaderSize:]

	binary.BigEndian.PutUint64(b[0:8], uint64(p.EntityModelID))
	binary.BigEndian.PutUint32(b[8:12], uint32(p.EntityCapabilities))
	binary.BigEndian.PutUint16(b[12:14], p.TalkerStreamSources)
	binary.BigEndian.PutUint16(b[14:16], uint16(p.TalkerCapabilities))
	binary.BigEndian.PutUint16(b[16:18], p.ListenerStreamSinks)
	binary.BigEndian.PutUint16(b[18:20], uint16(p.ListenerCapabilities))
	binary.BigEndian.PutUint32(b[20:24], uint32(p.ControllerCapabilities))
	binary.BigEndian.PutUint32(b[24:28], uint32(p.AvailableIndex))
	binary.BigEndian.PutUint64(b[28:36], p.GptpGrandmasterID)
	b[36] = p.GptpDomainNumber
	b[37] = 0 // reserved0
	binary.BigEndian.PutUint16(b[38:40], p.CurrentConfigurationIdx)
	binary.BigEndian.PutUint16(b[40:42], p.IdentifyControlIndex)
	binary.BigEndian.PutUint16(b[42:44], p.InterfaceIndex)
	binary.BigEndian.PutUint64(b[44:52], uint64(p.AssociationID))
	// b[52:56] reserved1, already zero

	return buf, nil
}

// Decode parses a full ADP PDU (header + payload) from buf.
func Decode(buf []byte) (PDU, error) {
	if len(buf) < PDUSize {
		return PDU{}, fmt.Errorf("%w: adp needs %d bytes, got %d", avtp.ErrShortFrame, PDUSize, len(buf))
	}
	h, err := avtp.DecodeHeader(buf)
	if err != nil {
		return PDU{}, err
	}
	if h.Subtype != avtp.SubtypeADP {
		return PDU{}, fmt.Errorf("%w: got %s", avtp.ErrBadSubtype, h.Subtype)
	}
	if h.ControlDataLength != PayloadSize {
		return PDU{}, fmt.Errorf("%w: adp control_data_length %d, want %d", avtp.ErrLengthMismatch, h.ControlDataLength, PayloadSize)
	}

	b := buf[avtp.HeaderSize:PDUSize]
	p := PDU{
		MessageType:             MessageType(h.MessageType),
		EntityID:                avdecc.EntityID(h.EntityID),
		ValidTime:               h.ValidTimeOrStatus,
		EntityModelID:           avdecc.EntityModelID(binary.BigEndian.Uint64(b[0:8])),
		EntityCapabilities:      avdecc.EntityCapabilities(binary.BigEndian.Uint32(b[8:12])),
		TalkerStreamSources:     binary.BigEndian.Uint16(b[12:14]),
		TalkerCapabilities:      avdecc.TalkerCapabilities(binary.BigEndian.Uint16(b[14:16])),
		ListenerStreamSinks:     binary.BigEndian.Uint16(b[16:18]),
		ListenerCapabilities:    avdecc.ListenerCapabilities(binary.BigEndian.Uint16(b[18:20])),
		ControllerCapabilities:  avdecc.ControllerCapabilities(binary.BigEndian.Uint32(b[20:24])),
		AvailableIndex:          avdecc.AvailableIndex(binary.BigEndian.Uint32(b[24:28])),
		GptpGrandmasterID:       binary.BigEndian.Uint64(b[28:36]),
		GptpDomainNumber:        b[36],
		CurrentConfigurationIdx: binary.BigEndian.Uint16(b[38:40]),
		IdentifyControlIndex:    binary.BigEndian.Uint16(b[40:42]),
		InterfaceIndex:          binary.BigEndian.Uint16(b[42:44]),
		AssociationID:           avdecc.AssociationID(binary.BigEndian.Uint64(b[44:52])),
	}
	return p, nil
}
