package acmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/avtp"
	"pgregory.net/rapid"
)

func sampleACMPPDU() PDU {
	return PDU{
		MessageType:        ConnectTxCommand,
		Status:             StatusSuccess,
		StreamID:           0x91E0F000AA000000,
		ControllerEntityID: 0x11,
		TalkerEntityID:     0xAA,
		ListenerEntityID:   0xBB,
		TalkerUniqueID:     0,
		ListenerUniqueID:   0,
		StreamDestMAC:      avdecc.MacAddress{0x91, 0xE0, 0xF0, 0x00, 0xAA, 0x00},
		ConnectionCount:    1,
		SequenceID:         42,
		Flags:              FlagClassB,
		StreamVlanID:       2,
	}
}

func TestACMPPDUEncodeDecodeRoundTrip(t *testing.T) {
	p := sampleACMPPDU()
	buf, err := p.Encode()
	require.NoError(t, err)
	require.Len(t, buf, PDUSize)
	assert.Equal(t, 56, PDUSize)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestACMPPDUControlDataLengthIs44(t *testing.T) {
	p := sampleACMPPDU()
	buf, err := p.Encode()
	require.NoError(t, err)
	h, err := avtp.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(44), h.ControlDataLength)
}

func TestACMPPDUDecodeRejectsWrongSubtype(t *testing.T) {
	p := sampleACMPPDU()
	buf, err := p.Encode()
	require.NoError(t, err)
	buf[0] = byte(avtp.SubtypeADP)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, avtp.ErrBadSubtype)
}

func TestACMPPDURoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var mac avdecc.MacAddress
		macBytes := rapid.SliceOfN(rapid.Byte(), 6, 6).Draw(rt, "mac")
		copy(mac[:], macBytes)

		p := PDU{
			MessageType:        MessageType(rapid.Uint8Range(0, 0x0D).Draw(rt, "mt")),
			Status:             Status(rapid.Uint8Range(0, 0x1F).Draw(rt, "status")),
			StreamID:           avdecc.StreamID(rapid.Uint64().Draw(rt, "sid")),
			ControllerEntityID: avdecc.EntityID(rapid.Uint64().Draw(rt, "cid")),
			TalkerEntityID:     avdecc.EntityID(rapid.Uint64().Draw(rt, "tid")),
			ListenerEntityID:   avdecc.EntityID(rapid.Uint64().Draw(rt, "lid")),
			TalkerUniqueID:     rapid.Uint16().Draw(rt, "tui"),
			ListenerUniqueID:   rapid.Uint16().Draw(rt, "lui"),
			StreamDestMAC:      mac,
			ConnectionCount:    rapid.Uint16().Draw(rt, "cc"),
			SequenceID:         avdecc.SequenceID(rapid.Uint16().Draw(rt, "seq")),
			Flags:              Flags(rapid.Uint16().Draw(rt, "flags")),
			StreamVlanID:       rapid.Uint16().Draw(rt, "vlan"),
		}
		buf, err := p.Encode()
		require.NoError(rt, err)
		got, err := Decode(buf)
		require.NoError(rt, err)
		assert.Equal(rt, p, got)
	})
}
