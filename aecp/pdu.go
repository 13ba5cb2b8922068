// Package aecp implements AECP/AEM (AVDECC Enumeration and Control
// Protocol): the bit-exact PDU codec (spec.md §4.1.4), command dispatch
// (spec.md §4.4.1-.2), the controller side (spec.md §4.4.3), acquire/lock
// ownership (spec.md §4.4.4) and the enumeration workflow (spec.md §4.4.6).
//
// Wire layout resolution: spec.md §4.1.4 states both "22-byte fixed prefix"
// and "total size is 22 + control_data_length", which is inconsistent with
// the universal rule in §4.1.1 (control_data_length = total - 12) every
// other PDU in this stack follows. This codec applies the universal rule:
// the fixed prefix is common header (12, target_entity_id in the shared
// slot) + controller_entity_id (8) + sequence_id (2) + cmd_type_field (2) =
// 24 bytes, control_data_length = 12 + len(command data), and total =
// 12 + control_data_length. This reproduces Testable Property 5's stated
// bounds exactly: control_data_length ∈ [12, 512] gives total ∈ [24, 524],
// matching the "capped at 524 bytes" ceiling in §4.1.4.
package aecp

import (
	"encoding/binary"
	"fmt"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/avtp"
)

// MessageType is the AECP 4-bit message_type enum (spec.md §4.1.4).
type MessageType uint8

const (
	AEMCommand  MessageType = 0
	AEMResponse MessageType = 1
)

func (m MessageType) String() string {
	if m == AEMCommand {
		return "AEM_COMMAND"
	}
	return "AEM_RESPONSE"
}

// FixedPrefixSize is the AECP payload bytes preceding command-specific data:
// controller_entity_id(8) + sequence_id(2) + cmd_type_field(2).
const FixedPrefixSize = 12

// MinControlDataLength/MaxControlDataLength bound control_data_length
// (spec.md Testable Property 5).
const (
	MinControlDataLength = FixedPrefixSize
	MaxControlDataLength = 512
)

// MaxPDUSize is the largest AECP PDU this stack accepts (spec.md §4.1.4:
// "capped at 524 bytes").
const MaxPDUSize = avtp.HeaderSize + MaxControlDataLength

// PDU is a decoded AECP message. TargetEntityID lives in the shared header
// slot; Status is packed into the header's 5-bit valid_time/status field.
type PDU struct {
	MessageType         MessageType
	Status              Status
	TargetEntityID      avdecc.EntityID
	ControllerEntityID  avdecc.EntityID
	SequenceID          avdecc.SequenceID
	Unsolicited         bool
	CommandType         CommandType
	CommandSpecificData []byte
}

// Encode serializes the PDU to HeaderSize+control_data_length bytes.
func (p PDU) Encode() ([]byte, error) {
	controlDataLength := FixedPrefixSize + len(p.CommandSpecificData)
	if controlDataLength > MaxControlDataLength {
		return nil, fmt.Errorf("%w: aecp control_data_length %d exceeds %d", avtp.ErrFieldOverflow, controlDataLength, MaxControlDataLength)
	}

	h := avtp.Header{
		Subtype:           avtp.SubtypeAECP,
		Version:           avtp.Version,
		MessageType:       uint8(p.MessageType),
		ValidTimeOrStatus: uint8(p.Status) & 0x1F,
		ControlDataLength: uint16(controlDataLength),
		EntityID:          uint64(p.TargetEntityID),
	}
	hdr, err := h.Encode()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, avtp.HeaderSize+controlDataLength)
	copy(buf[:avtp.HeaderSize], hdr)
	b := buf[avtp.HeaderSize:]

	binary.BigEndian.PutUint64(b[0:8], uint64(p.ControllerEntityID))
	binary.BigEndian.PutUint16(b[8:10], uint16(p.SequenceID))

	cmdField := uint16(p.CommandType) & 0x7FFF
	if p.Unsolicited {
		cmdField |= 0x8000
	}
	binary.BigEndian.PutUint16(b[10:12], cmdField)

	copy(b[12:], p.CommandSpecificData)
	return buf, nil
}

// Decode parses a full AECP PDU (header + payload) from buf. buf may be
// longer than the PDU; only HeaderSize+control_data_length bytes are read.
func Decode(buf []byte) (PDU, error) {
	if len(buf) < avtp.HeaderSize {
		return PDU{}, fmt.Errorf("%w: aecp needs at least %d bytes, got %d", avtp.ErrShortFrame, avtp.HeaderSize, len(buf))
	}
	h, err := avtp.DecodeHeader(buf)
	if err != nil {
		return PDU{}, err
	}
	if h.Subtype != avtp.SubtypeAECP {
		return PDU{}, fmt.Errorf("%w: got %s", avtp.ErrBadSubtype, h.Subtype)
	}
	if h.ControlDataLength < MinControlDataLength || h.ControlDataLength > MaxControlDataLength {
		return PDU{}, fmt.Errorf("%w: aecp control_data_length %d out of [%d,%d]", avtp.ErrFieldOverflow, h.ControlDataLength, MinControlDataLength, MaxControlDataLength)
	}
	total := avtp.HeaderSize + int(h.ControlDataLength)
	if len(buf) < total {
		return PDU{}, fmt.Errorf("%w: aecp needs %d bytes, got %d", avtp.ErrShortFrame, total, len(buf))
	}

	b := buf[avtp.HeaderSize:total]
	cmdField := binary.BigEndian.Uint16(b[10:12])
	cmdDataLen := int(h.ControlDataLength) - FixedPrefixSize

	p := PDU{
		MessageType:        MessageType(h.MessageType),
		Status:             Status(h.ValidTimeOrStatus),
		TargetEntityID:     avdecc.EntityID(h.EntityID),
		ControllerEntityID: avdecc.EntityID(binary.BigEndian.Uint64(b[0:8])),
		SequenceID:         avdecc.SequenceID(binary.BigEndian.Uint16(b[8:10])),
		Unsolicited:        cmdField&0x8000 != 0,
		CommandType:        CommandType(cmdField & 0x7FFF),
	}
	if cmdDataLen > 0 {
		p.CommandSpecificData = make([]byte, cmdDataLen)
		copy(p.CommandSpecificData, b[12:12+cmdDataLen])
	}
	return p, nil
}
