// Package entitymodel implements the AVDECC Entity Model descriptor types
// and the per-entity store (spec.md §3.3, §3.4): the data AECP's
// READ_DESCRIPTOR and friends expose.
package entitymodel

import "github.com/zarfld/go-avdecc/avdecc"

// DescriptorType is the 16-bit descriptor type enum (spec.md §4.4.2
// READ_DESCRIPTOR's type field, §6.4's ENTITY=0x0000 reference).
type DescriptorType uint16

const (
	DescEntity           DescriptorType = 0x0000
	DescConfiguration    DescriptorType = 0x0001
	DescAudioUnit        DescriptorType = 0x0002
	DescStreamInput      DescriptorType = 0x0005
	DescStreamOutput     DescriptorType = 0x0006
	DescJackInput        DescriptorType = 0x0007
	DescJackOutput       DescriptorType = 0x0008
	DescAVBInterface     DescriptorType = 0x0009
	DescClockSource      DescriptorType = 0x000A
	DescMemoryObject     DescriptorType = 0x000B
	DescLocale           DescriptorType = 0x000C
	DescStrings          DescriptorType = 0x000D
	DescStreamPortInput  DescriptorType = 0x000E
	DescStreamPortOutput DescriptorType = 0x000F
	DescAudioCluster     DescriptorType = 0x0014
	DescControl          DescriptorType = 0x001A
	DescSignalSelector   DescriptorType = 0x001B
	DescMixer            DescriptorType = 0x001C
	DescMatrix           DescriptorType = 0x001D
	DescClockDomain      DescriptorType = 0x0024
	DescAudioMap         DescriptorType = 0x002F
)

func (t DescriptorType) String() string {
	switch t {
	case DescEntity:
		return "ENTITY"
	case DescConfiguration:
		return "CONFIGURATION"
	case DescAudioUnit:
		return "AUDIO_UNIT"
	case DescStreamInput:
		return "STREAM_INPUT"
	case DescStreamOutput:
		return "STREAM_OUTPUT"
	case DescJackInput:
		return "JACK_INPUT"
	case DescJackOutput:
		return "JACK_OUTPUT"
	case DescAVBInterface:
		return "AVB_INTERFACE"
	case DescClockSource:
		return "CLOCK_SOURCE"
	case DescMemoryObject:
		return "MEMORY_OBJECT"
	case DescLocale:
		return "LOCALE"
	case DescStrings:
		return "STRINGS"
	case DescStreamPortInput:
		return "STREAM_PORT_INPUT"
	case DescStreamPortOutput:
		return "STREAM_PORT_OUTPUT"
	case DescAudioCluster:
		return "AUDIO_CLUSTER"
	case DescControl:
		return "CONTROL"
	case DescSignalSelector:
		return "SIGNAL_SELECTOR"
	case DescMixer:
		return "MIXER"
	case DescMatrix:
		return "MATRIX"
	case DescClockDomain:
		return "CLOCK_DOMAIN"
	case DescAudioMap:
		return "AUDIO_MAP"
	default:
		return "UNKNOWN"
	}
}

// EntityDescriptor is the sole, index-0 ENTITY descriptor (spec.md §3.3).
type EntityDescriptor struct {
	EntityID               avdecc.EntityID
	EntityModelID          avdecc.EntityModelID
	EntityCapabilities     avdecc.EntityCapabilities
	TalkerStreamSources    uint16
	TalkerCapabilities     avdecc.TalkerCapabilities
	ListenerStreamSinks    uint16
	ListenerCapabilities   avdecc.ListenerCapabilities
	ControllerCapabilities avdecc.ControllerCapabilities
	AvailableIndex         avdecc.AvailableIndex
	AssociationID          avdecc.AssociationID
	EntityName             string
	VendorName             string
	ModelName              string
	FirmwareVersion        string
	GroupName              string
	SerialNumber           string
	ConfigurationsCount    uint16
	CurrentConfiguration   uint16
}

// ConfigurationDescriptor lists how many descriptors of each type the active
// configuration owns (spec.md §3.3: "array of per-descriptor-type counts
// that index the rest of the store").
type ConfigurationDescriptor struct {
	ObjectName           string
	LocalizedDescription string
	DescriptorCounts     map[DescriptorType]uint16
}

// AudioUnitDescriptor (spec.md §3.3).
type AudioUnitDescriptor struct {
	ObjectName                string
	ClockDomainIndex          uint16
	NumberOfStreamInputPorts  uint16
	BaseStreamInputPort       uint16
	NumberOfStreamOutputPorts uint16
	BaseStreamOutputPort      uint16
	SamplingRate              uint32
	SamplingRatesSupported    []uint32
}

// StreamDescriptor covers both STREAM_INPUT and STREAM_OUTPUT (spec.md §3.3:
// "each stream descriptor carries a current stream_format ... backup talker
// triplets, and an AVB interface index").
type StreamDescriptor struct {
	ObjectName         string
	StreamFormat       uint64
	FormatsSupported   []uint64
	CurrentFormatIndex uint16
	AVBInterfaceIndex  uint16
	BackupTalkers      []BackupTalker
}

// BackupTalker is one (entity_id, unique_id) fallback triplet for a stream
// input (spec.md §3.3).
type BackupTalker struct {
	EntityID avdecc.EntityID
	UniqueID uint16
}

// JackDescriptor covers both JACK_INPUT and JACK_OUTPUT.
type JackDescriptor struct {
	ObjectName string
	JackType   uint16
}

// AVBInterfaceDescriptor (spec.md §3.3, §3.4 avb_info).
type AVBInterfaceDescriptor struct {
	ObjectName              string
	MacAddress              avdecc.MacAddress
	InterfaceFlags          uint16
	ClockIdentity           uint64
	Priority1               uint8
	ClockClass              uint8
	OffsetScaledLogVariance uint16
	ClockAccuracy           uint8
	Priority2               uint8
	DomainNumber            uint8
}

// ClockSourceDescriptor (spec.md §3.3).
type ClockSourceDescriptor struct {
	ObjectName               string
	ClockSourceType          uint16
	ClockSourceLocationType  DescriptorType
	ClockSourceLocationIndex uint16
}

// ClockDomainDescriptor (spec.md §3.3).
type ClockDomainDescriptor struct {
	ObjectName       string
	ClockSourceIndex uint16
	ClockSources     []uint16
}

// StreamPortDescriptor covers STREAM_PORT_INPUT and STREAM_PORT_OUTPUT
// (spec.md §3.3).
type StreamPortDescriptor struct {
	ClockDomainIndex uint16
	NumberOfClusters uint16
	BaseCluster      uint16
	NumberOfMaps     uint16
	BaseMap          uint16
}

// AudioClusterDescriptor (spec.md §3.3 invariant: channel_count bounded by
// the stream format's channel width).
type AudioClusterDescriptor struct {
	ObjectName   string
	SignalType   DescriptorType
	SignalIndex  uint16
	PathLatency  uint32
	ChannelCount uint16
	Format       uint8
}

// AudioMapping is one channel-to-stream binding inside an AUDIO_MAP
// descriptor (spec.md §3.3 invariant: "audio_map mappings reference only
// valid clusters & stream channels").
type AudioMapping struct {
	StreamIndex    uint16
	StreamChannel  uint16
	ClusterOffset  uint16
	ClusterChannel uint16
}

// AudioMapDescriptor (spec.md §3.3).
type AudioMapDescriptor struct {
	Mappings []AudioMapping
}

// ControlDescriptor (spec.md §3.3).
type ControlDescriptor struct {
	ObjectName       string
	ControlType      uint64
	ControlValueType uint16
	Values           []byte
}

// SignalSelectorDescriptor (spec.md §3.3).
type SignalSelectorDescriptor struct {
	ObjectName      string
	DefaultSelector uint16
}

// MixerDescriptor (spec.md §3.3).
type MixerDescriptor struct {
	ObjectName string
}

// MatrixDescriptor (spec.md §3.3).
type MatrixDescriptor struct {
	ObjectName  string
	RowCount    uint16
	ColumnCount uint16
}

// LocaleDescriptor (spec.md §3.3).
type LocaleDescriptor struct {
	LocaleID        string
	NumberOfStrings uint16
	BaseStrings     uint16
}

// StringsDescriptor (spec.md §3.3): up to 7 localized strings per block.
type StringsDescriptor struct {
	Strings [7]string
}

// MemoryObjectDescriptor (spec.md §3.3).
type MemoryObjectDescriptor struct {
	ObjectName            string
	MemoryObjectType      uint16
	TargetDescriptorType  DescriptorType
	TargetDescriptorIndex uint16
	StartAddress          uint64
	MaximumLength         uint64
	Length                uint64
}
