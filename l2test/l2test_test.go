package l2test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/avdecc"
)

func TestLoopbackPairDeliversFramesVerbatim(t *testing.T) {
	macA := avdecc.MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macB := avdecc.MacAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	a, b := NewLoopbackPair(macA, macB)

	_, ok := b.Receive()
	assert.False(t, ok)

	require.NoError(t, a.Send(avdecc.MulticastDestination, []byte("hello")))
	frame, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), frame)

	_, ok = b.Receive()
	assert.False(t, ok)

	assert.Equal(t, macA, a.LocalMAC())
	assert.Equal(t, macB, b.LocalMAC())
}

func TestEthernetFramerRoundTripsPayloadAndType(t *testing.T) {
	macA := avdecc.MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macB := avdecc.MacAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	pipeA, pipeB := NewBytePipePair()
	a := NewEthernetFramer(macA, pipeA)
	b := NewEthernetFramer(macB, pipeB)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, a.Send(avdecc.MulticastDestination, payload))

	got, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestEthernetFramerDropsNonAVDECCEtherType(t *testing.T) {
	// A frame with a different EtherType must not be mistaken for AVDECC
	// traffic; simulate by sending raw bytes that don't parse as our type.
	pipeA, pipeB := NewBytePipePair()
	macA := avdecc.MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	b := NewEthernetFramer(avdecc.MacAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, pipeB)

	// Hand-build an Ethernet+IPv4-tagged frame (EtherType 0x0800) directly
	// on the wire, bypassing EthernetFramer.Send which always stamps 0x22F0.
	raw := make([]byte, 14)
	copy(raw[0:6], avdecc.MulticastDestination[:])
	copy(raw[6:12], macA[:])
	raw[12], raw[13] = 0x08, 0x00

	require.NoError(t, pipeA.Send(raw))
	_, ok := b.Receive()
	assert.False(t, ok)
}
