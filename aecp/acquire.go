package aecp

import "encoding/binary"

// AcquireFlags are the ACQUIRE_ENTITY command's 32-bit flags field (spec.md
// §4.4.2).
type AcquireFlags uint32

const (
	AcquireFlagPersistent AcquireFlags = 1 << 0
	AcquireFlagRelease    AcquireFlags = 1 << 1
)

// Has reports whether bit is set.
func (f AcquireFlags) Has(bit AcquireFlags) bool { return f&bit != 0 }

// AcquireLockPayload is the shared 16-byte command-specific layout of
// ACQUIRE_ENTITY and LOCK_ENTITY (spec.md §4.4.2): flags(4) + owner/locked
// entity id(8) + descriptor_type(2) + descriptor_index(2).
type AcquireLockPayload struct {
	Flags           uint32
	OwnerOrLockerID uint64
	DescriptorType  uint16
	DescriptorIndex uint16
}

// Encode serializes the payload to exactly 16 bytes.
func (p AcquireLockPayload) Encode() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[0:4], p.Flags)
	binary.BigEndian.PutUint64(b[4:12], p.OwnerOrLockerID)
	binary.BigEndian.PutUint16(b[12:14], p.DescriptorType)
	binary.BigEndian.PutUint16(b[14:16], p.DescriptorIndex)
	return b
}

// DecodeAcquireLockPayload parses the 16-byte shared layout.
func DecodeAcquireLockPayload(b []byte) (AcquireLockPayload, bool) {
	if len(b) < 16 {
		return AcquireLockPayload{}, false
	}
	return AcquireLockPayload{
		Flags:           binary.BigEndian.Uint32(b[0:4]),
		OwnerOrLockerID: binary.BigEndian.Uint64(b[4:12]),
		DescriptorType:  binary.BigEndian.Uint16(b[12:14]),
		DescriptorIndex: binary.BigEndian.Uint16(b[14:16]),
	}, true
}
