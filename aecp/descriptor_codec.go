package aecp

import (
	"encoding/binary"
	"sort"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// nameFieldSize is the fixed, null-padded width used for every
// object_name/entity_name string field on the wire (spec.md §3.3 leaves the
// exact width unspecified; 64 bytes matches the IEEE 1722.1 AEM string size).
const nameFieldSize = 64

func putName(b []byte, s string) {
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

func getName(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// EncodeEntityDescriptor serializes the ENTITY descriptor's READ_DESCRIPTOR
// response body (spec.md §3.3: entity_id, entity_model_id, the three
// capability masks, stream source/sink counts, available_index,
// association_id, then the fixed-width name fields).
func EncodeEntityDescriptor(e entitymodel.EntityDescriptor) []byte {
	b := make([]byte, 8+8+4+2+2+2+2+4+4+8+nameFieldSize*6+2+2)
	off := 0
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(b[off:off+8], v); off += 8 }
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(b[off:off+4], v); off += 4 }
	putU16 := func(v uint16) { binary.BigEndian.PutUint16(b[off:off+2], v); off += 2 }

	putU64(uint64(e.EntityID))
	putU64(uint64(e.EntityModelID))
	putU32(uint32(e.EntityCapabilities))
	putU16(e.TalkerStreamSources)
	putU16(uint16(e.TalkerCapabilities))
	putU16(e.ListenerStreamSinks)
	putU16(uint16(e.ListenerCapabilities))
	putU32(uint32(e.ControllerCapabilities))
	putU32(uint32(e.AvailableIndex))
	putU64(uint64(e.AssociationID))

	putName(b[off:off+nameFieldSize], e.EntityName)
	off += nameFieldSize
	putName(b[off:off+nameFieldSize], e.VendorName)
	off += nameFieldSize
	putName(b[off:off+nameFieldSize], e.ModelName)
	off += nameFieldSize
	putName(b[off:off+nameFieldSize], e.FirmwareVersion)
	off += nameFieldSize
	putName(b[off:off+nameFieldSize], e.GroupName)
	off += nameFieldSize
	putName(b[off:off+nameFieldSize], e.SerialNumber)
	off += nameFieldSize

	putU16(e.ConfigurationsCount)
	putU16(e.CurrentConfiguration)
	return b
}

// EncodeGenericDescriptor serializes the common, controller-relevant fields
// of any non-ENTITY descriptor for a READ_DESCRIPTOR response. Descriptor
// types without a case below encode to nil (no body);
// spec.md does not require bit-exact fidelity for descriptor bodies beyond
// ENTITY (only ENTITY's fields are named as Testable Properties).
func EncodeGenericDescriptor(d any) []byte {
	switch v := d.(type) {
	case entitymodel.StreamDescriptor:
		b := make([]byte, nameFieldSize+8+2+2)
		putName(b[0:nameFieldSize], v.ObjectName)
		off := nameFieldSize
		binary.BigEndian.PutUint64(b[off:off+8], v.StreamFormat)
		off += 8
		binary.BigEndian.PutUint16(b[off:off+2], v.CurrentFormatIndex)
		off += 2
		binary.BigEndian.PutUint16(b[off:off+2], v.AVBInterfaceIndex)
		return b
	case entitymodel.ConfigurationDescriptor:
		return EncodeConfigurationDescriptor(v)
	case entitymodel.AudioUnitDescriptor:
		b := make([]byte, nameFieldSize+4)
		putName(b[0:nameFieldSize], v.ObjectName)
		binary.BigEndian.PutUint32(b[nameFieldSize:], v.SamplingRate)
		return b
	case entitymodel.AVBInterfaceDescriptor:
		b := make([]byte, nameFieldSize+6)
		putName(b[0:nameFieldSize], v.ObjectName)
		copy(b[nameFieldSize:nameFieldSize+6], v.MacAddress[:])
		return b
	case entitymodel.AudioClusterDescriptor:
		b := make([]byte, nameFieldSize+2)
		putName(b[0:nameFieldSize], v.ObjectName)
		binary.BigEndian.PutUint16(b[nameFieldSize:], v.ChannelCount)
		return b
	case entitymodel.JackDescriptor:
		b := make([]byte, nameFieldSize)
		putName(b, v.ObjectName)
		return b
	case entitymodel.ClockDomainDescriptor:
		b := make([]byte, nameFieldSize+2)
		putName(b[0:nameFieldSize], v.ObjectName)
		binary.BigEndian.PutUint16(b[nameFieldSize:], v.ClockSourceIndex)
		return b
	case entitymodel.StreamPortDescriptor:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v.ClockDomainIndex)
		return b
	case entitymodel.AudioMapDescriptor:
		b := make([]byte, 2+4*len(v.Mappings))
		binary.BigEndian.PutUint16(b[0:2], uint16(len(v.Mappings)))
		off := 2
		for _, m := range v.Mappings {
			binary.BigEndian.PutUint16(b[off:off+2], m.StreamIndex)
			binary.BigEndian.PutUint16(b[off+2:off+4], m.ClusterOffset)
			off += 4
		}
		return b
	default:
		return nil
	}
}

// DecodeEntityDescriptor parses a READ_DESCRIPTOR response body produced by
// EncodeEntityDescriptor. It is the enumeration workflow's entry point into
// the discovered entity's static identity and capabilities (spec.md §4.4.6
// step "read ENTITY descriptor").
func DecodeEntityDescriptor(b []byte) (entitymodel.EntityDescriptor, bool) {
	const fixed = 8 + 8 + 4 + 2 + 2 + 2 + 2 + 4 + 4 + 8
	if len(b) < fixed+nameFieldSize*6+2+2 {
		return entitymodel.EntityDescriptor{}, false
	}
	off := 0
	getU64 := func() uint64 { v := binary.BigEndian.Uint64(b[off : off+8]); off += 8; return v }
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(b[off : off+4]); off += 4; return v }
	getU16 := func() uint16 { v := binary.BigEndian.Uint16(b[off : off+2]); off += 2; return v }

	e := entitymodel.EntityDescriptor{}
	e.EntityID = avdecc.EntityID(getU64())
	e.EntityModelID = avdecc.EntityModelID(getU64())
	e.EntityCapabilities = avdecc.EntityCapabilities(getU32())
	e.TalkerStreamSources = getU16()
	e.TalkerCapabilities = avdecc.TalkerCapabilities(getU16())
	e.ListenerStreamSinks = getU16()
	e.ListenerCapabilities = avdecc.ListenerCapabilities(getU16())
	e.ControllerCapabilities = avdecc.ControllerCapabilities(getU32())
	e.AvailableIndex = avdecc.AvailableIndex(getU32())
	e.AssociationID = avdecc.AssociationID(getU64())

	e.EntityName = getName(b[off : off+nameFieldSize])
	off += nameFieldSize
	e.VendorName = getName(b[off : off+nameFieldSize])
	off += nameFieldSize
	e.ModelName = getName(b[off : off+nameFieldSize])
	off += nameFieldSize
	e.FirmwareVersion = getName(b[off : off+nameFieldSize])
	off += nameFieldSize
	e.GroupName = getName(b[off : off+nameFieldSize])
	off += nameFieldSize
	e.SerialNumber = getName(b[off : off+nameFieldSize])
	off += nameFieldSize

	e.ConfigurationsCount = getU16()
	e.CurrentConfiguration = getU16()
	return e, true
}

// EncodeConfigurationDescriptor serializes object_name followed by a sorted
// (descriptor_type, count) table, giving the enumeration workflow the
// per-type counts it needs to walk the rest of the configuration (spec.md
// §4.4.6 step "read CONFIGURATION descriptor").
func EncodeConfigurationDescriptor(c entitymodel.ConfigurationDescriptor) []byte {
	types := make([]entitymodel.DescriptorType, 0, len(c.DescriptorCounts))
	for t := range c.DescriptorCounts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	b := make([]byte, nameFieldSize+2+4*len(types))
	putName(b[0:nameFieldSize], c.ObjectName)
	off := nameFieldSize
	binary.BigEndian.PutUint16(b[off:off+2], uint16(len(types)))
	off += 2
	for _, t := range types {
		binary.BigEndian.PutUint16(b[off:off+2], uint16(t))
		binary.BigEndian.PutUint16(b[off+2:off+4], c.DescriptorCounts[t])
		off += 4
	}
	return b
}

// DecodeConfigurationDescriptor parses the body produced by
// EncodeConfigurationDescriptor.
func DecodeConfigurationDescriptor(b []byte) (entitymodel.ConfigurationDescriptor, bool) {
	if len(b) < nameFieldSize+2 {
		return entitymodel.ConfigurationDescriptor{}, false
	}
	c := entitymodel.ConfigurationDescriptor{DescriptorCounts: make(map[entitymodel.DescriptorType]uint16)}
	c.ObjectName = getName(b[0:nameFieldSize])
	off := nameFieldSize
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return entitymodel.ConfigurationDescriptor{}, false
		}
		t := entitymodel.DescriptorType(binary.BigEndian.Uint16(b[off : off+2]))
		count := binary.BigEndian.Uint16(b[off+2 : off+4])
		c.DescriptorCounts[t] = count
		off += 4
	}
	return c, true
}
