package aecp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockPayloadEncodeDecodeRoundTrip(t *testing.T) {
	p := AcquireLockPayload{
		Flags:           uint32(AcquireFlagPersistent),
		OwnerOrLockerID: 0x001B92FFFE1234AB,
		DescriptorType:  0x0000,
		DescriptorIndex: 0,
	}
	b := p.Encode()
	require.Len(t, b, 16)

	got, ok := DecodeAcquireLockPayload(b)
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestAcquireFlagsHas(t *testing.T) {
	f := AcquireFlags(0)
	assert.False(t, f.Has(AcquireFlagPersistent))
	f |= AcquireFlagRelease
	assert.True(t, f.Has(AcquireFlagRelease))
	assert.False(t, f.Has(AcquireFlagPersistent))
}

func TestDecodeAcquireLockPayloadRejectsShortBuffer(t *testing.T) {
	_, ok := DecodeAcquireLockPayload(make([]byte, 10))
	assert.False(t, ok)
}
