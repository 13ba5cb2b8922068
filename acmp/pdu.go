// Package acmp implements ACMP (AVDECC Connection Management Protocol): the
// bit-exact PDU codec (spec.md §4.1.3) and the controller/talker/listener
// state machines (spec.md §4.3).
package acmp

import (
	"encoding/binary"
	"fmt"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/avtp"
)

// MessageType is the ACMP 4-bit message_type enum (spec.md §4.1.3). Even
// values are commands, odd values their matching response.
type MessageType uint8

const (
	ConnectTxCommand        MessageType = 0x00
	ConnectTxResponse       MessageType = 0x01
	DisconnectTxCommand     MessageType = 0x02
	DisconnectTxResponse    MessageType = 0x03
	GetTxStateCommand       MessageType = 0x04
	GetTxStateResponse      MessageType = 0x05
	ConnectRxCommand        MessageType = 0x06
	ConnectRxResponse       MessageType = 0x07
	DisconnectRxCommand     MessageType = 0x08
	DisconnectRxResponse    MessageType = 0x09
	GetRxStateCommand       MessageType = 0x0A
	GetRxStateResponse      MessageType = 0x0B
	GetTxConnectionCommand  MessageType = 0x0C
	GetTxConnectionResponse MessageType = 0x0D
)

// IsResponse reports whether m is a response message type (odd values).
func (m MessageType) IsResponse() bool { return m&0x01 == 1 }

func (m MessageType) String() string {
	switch m {
	case ConnectTxCommand:
		return "CONNECT_TX_COMMAND"
	case ConnectTxResponse:
		return "CONNECT_TX_RESPONSE"
	case DisconnectTxCommand:
		return "DISCONNECT_TX_COMMAND"
	case DisconnectTxResponse:
		return "DISCONNECT_TX_RESPONSE"
	case GetTxStateCommand:
		return "GET_TX_STATE_COMMAND"
	case GetTxStateResponse:
		return "GET_TX_STATE_RESPONSE"
	case ConnectRxCommand:
		return "CONNECT_RX_COMMAND"
	case ConnectRxResponse:
		return "CONNECT_RX_RESPONSE"
	case DisconnectRxCommand:
		return "DISCONNECT_RX_COMMAND"
	case DisconnectRxResponse:
		return "DISCONNECT_RX_RESPONSE"
	case GetRxStateCommand:
		return "GET_RX_STATE_COMMAND"
	case GetRxStateResponse:
		return "GET_RX_STATE_RESPONSE"
	case GetTxConnectionCommand:
		return "GET_TX_CONNECTION_COMMAND"
	case GetTxConnectionResponse:
		return "GET_TX_CONNECTION_RESPONSE"
	default:
		return fmt.Sprintf("MessageType(0x%02X)", uint8(m))
	}
}

// Flags are the 16-bit ACMP connection flags (spec.md §3.5); only the bits
// this stack sets or inspects are named.
type Flags uint16

const (
	FlagClassB            Flags = 1 << 0
	FlagFastConnect       Flags = 1 << 1
	FlagSavedState        Flags = 1 << 2
	FlagStreamingWait     Flags = 1 << 3
	FlagSupportsEncrypted Flags = 1 << 4
	FlagEncryptedPDU      Flags = 1 << 5
	FlagTalkerFailed      Flags = 1 << 6
)

// PayloadSize is the fixed ACMP payload size after the common header
// (spec.md §4.1.3: control_data_length MUST equal 44).
const PayloadSize = 44

// PDUSize is the total ACMP PDU size (12-byte header + 44-byte payload = 56).
const PDUSize = avtp.HeaderSize + PayloadSize

// PDU is a decoded ACMP message. StreamID lives in the shared header slot;
// Status is packed into the header's 5-bit valid_time/status field, the same
// slot ADP uses for valid_time.
type PDU struct {
	MessageType        MessageType
	Status             Status
	StreamID           avdecc.StreamID
	ControllerEntityID avdecc.EntityID
	TalkerEntityID     avdecc.EntityID
	ListenerEntityID   avdecc.EntityID
	TalkerUniqueID     uint16
	ListenerUniqueID   uint16
	StreamDestMAC      avdecc.MacAddress
	ConnectionCount    uint16
	SequenceID         avdecc.SequenceID
	Flags              Flags
	StreamVlanID       uint16
}

// Encode serializes the PDU to exactly PDUSize bytes.
func (p PDU) Encode() ([]byte, error) {
	h := avtp.Header{
		Subtype:           avtp.SubtypeACMP,
		Version:           avtp.Version,
		MessageType:       uint8(p.MessageType),
		ValidTimeOrStatus: uint8(p.Status) & 0x1F,
		ControlDataLength: PayloadSize,
		EntityID:          uint64(p.StreamID),
	}
	hdr, err := h.Encode()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, PDUSize)
	copy(buf[:avtp.HeaderSize], hdr)
	b := buf[avtp.HeaderSize:]

	binary.BigEndian.PutUint64(b[0:8], uint64(p.ControllerEntityID))
	binary.BigEndian.PutUint64(b[8:16], uint64(p.TalkerEntityID))
	binary.BigEndian.PutUint64(b[16:24], uint64(p.ListenerEntityID))
	binary.BigEndian.PutUint16(b[24:26], p.TalkerUniqueID)
	binary.BigEndian.PutUint16(b[26:28], p.ListenerUniqueID)
	copy(b[28:34], p.StreamDestMAC[:])
	binary.BigEndian.PutUint16(b[34:36], p.ConnectionCount)
	binary.BigEndian.PutUint16(b[36:38], uint16(p.SequenceID))
	binary.BigEndian.PutUint16(b[38:40], uint16(p.Flags))
	binary.BigEndian.PutUint16(b[40:42], p.StreamVlanID)
	// b[42:44] reserved, already zero

	return buf, nil
}

// Decode parses a full ACMP PDU (header + payload) from buf.
func Decode(buf []byte) (PDU, error) {
	if len(buf) < PDUSize {
		return PDU{}, fmt.Errorf("%w: acmp needs %d bytes, got %d", avtp.ErrShortFrame, PDUSize, len(buf))
	}
	h, err := avtp.DecodeHeader(buf)
	if err != nil {
		return PDU{}, err
	}
	if h.Subtype != avtp.SubtypeACMP {
		return PDU{}, fmt.Errorf("%w: got %s", avtp.ErrBadSubtype, h.Subtype)
	}
	if h.ControlDataLength != PayloadSize {
		return PDU{}, fmt.Errorf("%w: acmp control_data_length %d, want %d", avtp.ErrLengthMismatch, h.ControlDataLength, PayloadSize)
	}

	b := buf[avtp.HeaderSize:PDUSize]
	p := PDU{
		MessageType:        MessageType(h.MessageType),
		Status:             Status(h.ValidTimeOrStatus),
		StreamID:           avdecc.StreamID(h.EntityID),
		ControllerEntityID: avdecc.EntityID(binary.BigEndian.Uint64(b[0:8])),
		TalkerEntityID:     avdecc.EntityID(binary.BigEndian.Uint64(b[8:16])),
		ListenerEntityID:   avdecc.EntityID(binary.BigEndian.Uint64(b[16:24])),
		TalkerUniqueID:     binary.BigEndian.Uint16(b[24:26]),
		ListenerUniqueID:   binary.BigEndian.Uint16(b[26:28]),
		ConnectionCount:    binary.BigEndian.Uint16(b[34:36]),
		SequenceID:         avdecc.SequenceID(binary.BigEndian.Uint16(b[36:38])),
		Flags:              Flags(binary.BigEndian.Uint16(b[38:40])),
		StreamVlanID:       binary.BigEndian.Uint16(b[40:42]),
	}
	copy(p.StreamDestMAC[:], b[28:34])
	return p, nil
}
