package avtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Subtype:           SubtypeADP,
		H:                 true,
		Version:           Version,
		MessageType:       0x2,
		ValidTimeOrStatus: 0x1F,
		ControlDataLength: 56,
		EntityID:          0x001B92FFFE1234AB,
	}
	buf, err := h.Encode()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderDecodeShortFrame(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestHeaderDecodeBadVersion(t *testing.T) {
	h := Header{Subtype: SubtypeADP, Version: Version, ControlDataLength: 56}
	buf, err := h.Encode()
	require.NoError(t, err)
	buf[1] = (buf[1] &^ 0x70) | (0x5 << 4) // corrupt the 3-bit version field
	_, err = DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestHeaderControlDataLengthOverflow(t *testing.T) {
	h := Header{Subtype: SubtypeADP, Version: Version, ControlDataLength: 0x0800}
	_, err := h.Encode()
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestHeaderRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := Header{
			Subtype:           Subtype(rapid.SampledFrom([]byte{byte(SubtypeADP), byte(SubtypeAECP), byte(SubtypeACMP)}).Draw(rt, "subtype")),
			H:                 rapid.Bool().Draw(rt, "h"),
			Version:           Version,
			MessageType:       rapid.Uint8Range(0, 0x0F).Draw(rt, "mt"),
			ValidTimeOrStatus: rapid.Uint8Range(0, 0x1F).Draw(rt, "vt"),
			ControlDataLength: rapid.Uint16Range(0, 0x07FF).Draw(rt, "cdl"),
			EntityID:          rapid.Uint64().Draw(rt, "eid"),
		}
		buf, err := h.Encode()
		require.NoError(rt, err)
		got, err := DecodeHeader(buf)
		require.NoError(rt, err)
		assert.Equal(rt, h, got)
	})
}
