// Package avtp implements the 12-byte AVTP common header shared by the ADP,
// ACMP and AECP protocol data units (IEEE 1722-2016 common header, reused by
// IEEE 1722.1-2021). Field packing follows the bit-exact layout in the
// protocol's §4.1.1/§6.2: network byte order, MSB-first bit packing within an
// octet, round-trip exact for every well-formed frame.
package avtp

import (
	"encoding/binary"
	"fmt"
)

// Subtype identifies which 1722.1 protocol a frame carries. Each protocol
// dispatches on a distinct subtype byte so that ingress decoding (data flow
// §2: "L2 frame -> C1 decode -> dispatch by AVTP subtype") never has to
// inspect message-type before it knows which PDU shape to parse.
type Subtype byte

const (
	SubtypeADP  Subtype = 0x7A
	SubtypeAECP Subtype = 0x7B
	SubtypeACMP Subtype = 0x7C
)

func (sf Subtype) String() string {
	switch sf {
	case SubtypeADP:
		return "ADP"
	case SubtypeAECP:
		return "AECP"
	case SubtypeACMP:
		return "ACMP"
	default:
		return fmt.Sprintf("Subtype(0x%02X)", byte(sf))
	}
}

// HeaderSize is the fixed size in bytes of the AVTP common header.
const HeaderSize = 12

// Version is the only version value this stack accepts on the wire.
const Version = 0

// Header is the 12-byte AVTP common header prefixing every ADP, ACMP and
// AECP PDU. The trailing 8-byte EntityID slot is shared across subtypes and
// reinterpreted per-protocol: the advertising entity's EntityID for ADP, the
// stream_id for ACMP, and the target_entity_id for AECP.
type Header struct {
	Subtype           Subtype
	H                 bool   // header_specific flag, 1 bit
	Version           uint8  // 3 bits, must be 0
	MessageType       uint8  // 4 bits, per-protocol enum
	ValidTimeOrStatus uint8  // 5 bits, per-protocol
	ControlDataLength uint16 // 11 bits, payload length after the common header
	EntityID          uint64 // shared 8-byte slot, EUI-64 big-endian on the wire
}

// Encode serializes the header to exactly HeaderSize bytes.
func (h Header) Encode() ([]byte, error) {
	if h.Version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrBadVersion, h.Version)
	}
	if h.MessageType > 0x0F {
		return nil, fmt.Errorf("%w: message_type %d", ErrFieldOverflow, h.MessageType)
	}
	if h.ValidTimeOrStatus > 0x1F {
		return nil, fmt.Errorf("%w: valid_time/status %d", ErrFieldOverflow, h.ValidTimeOrStatus)
	}
	if h.ControlDataLength > 0x07FF {
		return nil, fmt.Errorf("%w: control_data_length %d", ErrFieldOverflow, h.ControlDataLength)
	}

	b := make([]byte, HeaderSize)
	b[0] = byte(h.Subtype)

	octet1 := (h.Version & 0x07) << 4
	if h.H {
		octet1 |= 0x80
	}
	octet1 |= h.MessageType & 0x0F
	b[1] = octet1

	word := uint16(h.ValidTimeOrStatus&0x1F)<<11 | h.ControlDataLength&0x07FF
	binary.BigEndian.PutUint16(b[2:4], word)

	binary.BigEndian.PutUint64(b[4:12], h.EntityID)
	return b, nil
}

// DecodeHeader parses the leading HeaderSize bytes of buf into a Header. A
// failed decode never mutates caller state; the returned error wraps
// ErrShortFrame or ErrBadVersion as appropriate.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d bytes, got %d", ErrShortFrame, HeaderSize, len(buf))
	}

	octet1 := buf[1]
	version := (octet1 >> 4) & 0x07
	if version != Version {
		return Header{}, fmt.Errorf("%w: version %d", ErrBadVersion, version)
	}

	word := binary.BigEndian.Uint16(buf[2:4])
	h := Header{
		Subtype:           Subtype(buf[0]),
		H:                 octet1&0x80 != 0,
		Version:           version,
		MessageType:       octet1 & 0x0F,
		ValidTimeOrStatus: uint8(word >> 11),
		ControlDataLength: word & 0x07FF,
		EntityID:          binary.BigEndian.Uint64(buf[4:12]),
	}
	return h, nil
}
