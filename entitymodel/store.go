package entitymodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/zarfld/go-avdecc/avdecc"
)

// ErrInvariantViolation is returned when a mutation would break a store
// invariant (spec.md §3.3 Invariants, §7 "InvariantViolation"): the mutation
// is rejected and the store is left unchanged.
var ErrInvariantViolation = errors.New("entitymodel: invariant violation")

// descriptorKey addresses one descriptor by (type, index) within a
// configuration.
type descriptorKey struct {
	Type  DescriptorType
	Index uint16
}

// Store holds every descriptor for one local or remote entity, plus the
// dynamic state tracked alongside it (spec.md §3.3, §3.4).
type Store struct {
	entity      EntityDescriptor
	configs     []ConfigurationDescriptor
	descriptors map[int]map[descriptorKey]any // per-configuration descriptor set

	acquireState AcquireState
	lockState    LockState
}

// AcquireState models spec.md §3.4's {NotSupported, NotAcquired,
// Acquired(by)} tri-state.
type AcquireState struct {
	Supported bool
	Acquired  bool
	By        avdecc.EntityID
}

// LockState models spec.md §3.4's {NotSupported, NotLocked, Locked(by,
// expires_at)} tri-state.
type LockState struct {
	Supported         bool
	Locked            bool
	By                avdecc.EntityID
	ExpiresAtUnixNano int64
}

// NewStore builds a Store seeded with the ENTITY descriptor and an initial
// empty CONFIGURATION 0.
func NewStore(entity EntityDescriptor) *Store {
	s := &Store{
		entity:      entity,
		configs:     []ConfigurationDescriptor{{DescriptorCounts: make(map[DescriptorType]uint16)}},
		descriptors: map[int]map[descriptorKey]any{0: {}},
	}
	return s
}

// Entity returns the current ENTITY descriptor.
func (s *Store) Entity() EntityDescriptor { return s.entity }

// SetEntity replaces the ENTITY descriptor wholesale (e.g. after a
// vendor/model rename); callers must still bump available_index themselves.
func (s *Store) SetEntity(e EntityDescriptor) { s.entity = e }

// AddConfiguration appends a new CONFIGURATION and returns its index.
func (s *Store) AddConfiguration(cfg ConfigurationDescriptor) uint16 {
	if cfg.DescriptorCounts == nil {
		cfg.DescriptorCounts = make(map[DescriptorType]uint16)
	}
	s.configs = append(s.configs, cfg)
	idx := uint16(len(s.configs) - 1)
	s.descriptors[int(idx)] = map[descriptorKey]any{}
	s.entity.ConfigurationsCount = uint16(len(s.configs))
	return idx
}

// SetDescriptor stores one descriptor at (configIdx, type, index). It
// enforces the contiguous-indices invariant: index must be less than the
// configuration's advertised count for that type, bumping the count when
// index == count (append) and rejecting any gap.
func (s *Store) SetDescriptor(configIdx uint16, dtype DescriptorType, index uint16, d any) error {
	if int(configIdx) >= len(s.configs) {
		return fmt.Errorf("%w: no configuration %d", ErrInvariantViolation, configIdx)
	}
	cfg := &s.configs[configIdx]
	count := cfg.DescriptorCounts[dtype]
	if index > count {
		return fmt.Errorf("%w: %s index %d would leave a gap (count=%d)", ErrInvariantViolation, dtype, index, count)
	}
	key := descriptorKey{Type: dtype, Index: index}
	s.descriptors[int(configIdx)][key] = d
	if index == count {
		cfg.DescriptorCounts[dtype] = count + 1
	}
	return nil
}

// GetDescriptor retrieves one descriptor. ok is false if it does not exist.
func (s *Store) GetDescriptor(configIdx uint16, dtype DescriptorType, index uint16) (any, bool) {
	m, ok := s.descriptors[int(configIdx)]
	if !ok {
		return nil, false
	}
	d, ok := m[descriptorKey{Type: dtype, Index: index}]
	return d, ok
}

// Configuration returns the CONFIGURATION descriptor at idx.
func (s *Store) Configuration(idx uint16) (ConfigurationDescriptor, bool) {
	if int(idx) >= len(s.configs) {
		return ConfigurationDescriptor{}, false
	}
	return s.configs[idx], true
}

// DescriptorCount reports how many descriptors of dtype the configuration
// advertises.
func (s *Store) DescriptorCount(configIdx uint16, dtype DescriptorType) uint16 {
	if int(configIdx) >= len(s.configs) {
		return 0
	}
	return s.configs[configIdx].DescriptorCounts[dtype]
}

// SetCurrentConfiguration validates and applies a SET_CONFIGURATION
// (spec.md §3.3 invariant: current_configuration <= configurations_count-1).
func (s *Store) SetCurrentConfiguration(idx uint16) error {
	if idx >= uint16(len(s.configs)) {
		return fmt.Errorf("%w: configuration %d out of range (have %d)", ErrInvariantViolation, idx, len(s.configs))
	}
	s.entity.CurrentConfiguration = idx
	return nil
}

// ValidateStreamAVBInterface checks "a stream's avb_interface_index
// references a valid AVB_INTERFACE descriptor" (spec.md §3.3).
func (s *Store) ValidateStreamAVBInterface(configIdx uint16, stream StreamDescriptor) error {
	if _, ok := s.GetDescriptor(configIdx, DescAVBInterface, stream.AVBInterfaceIndex); !ok {
		return fmt.Errorf("%w: stream references unknown avb_interface_index %d", ErrInvariantViolation, stream.AVBInterfaceIndex)
	}
	return nil
}

// ValidateAudioMapping checks "audio_map mappings reference only valid
// clusters & stream channels" (spec.md §3.3), given the bound stream's
// format channel width.
func (s *Store) ValidateAudioMapping(configIdx uint16, m AudioMapping, streamChannelWidth uint16) error {
	if _, ok := s.GetDescriptor(configIdx, DescStreamInput, m.StreamIndex); !ok {
		if _, ok2 := s.GetDescriptor(configIdx, DescStreamOutput, m.StreamIndex); !ok2 {
			return fmt.Errorf("%w: audio map references unknown stream %d", ErrInvariantViolation, m.StreamIndex)
		}
	}
	if m.StreamChannel >= streamChannelWidth {
		return fmt.Errorf("%w: audio map stream_channel %d exceeds format width %d", ErrInvariantViolation, m.StreamChannel, streamChannelWidth)
	}
	if _, ok := s.GetDescriptor(configIdx, DescAudioCluster, m.ClusterOffset); !ok {
		return fmt.Errorf("%w: audio map references unknown cluster %d", ErrInvariantViolation, m.ClusterOffset)
	}
	return nil
}

// AcquireState/LockState accessors ---------------------------------------

func (s *Store) Acquire() AcquireState { return s.acquireState }
func (s *Store) Lock() LockState       { return s.lockState }

// TryAcquire grants acquire to controllerID unless already acquired by
// another controller (spec.md §4.4.4).
func (s *Store) TryAcquire(controllerID avdecc.EntityID, release bool) bool {
	if release {
		if s.acquireState.Acquired && s.acquireState.By != controllerID {
			return false
		}
		s.acquireState.Acquired = false
		s.acquireState.By = 0
		return true
	}
	if s.acquireState.Acquired && s.acquireState.By != controllerID {
		return false
	}
	s.acquireState.Acquired = true
	s.acquireState.By = controllerID
	return true
}

// TryLock grants a time-bounded lock to controllerID unless already locked
// by another controller whose lock has not expired (spec.md §4.4.4).
func (s *Store) TryLock(controllerID avdecc.EntityID, expiresAtUnixNano int64, nowUnixNano int64, unlock bool) bool {
	if unlock {
		if s.lockState.Locked && s.lockState.By == controllerID {
			s.lockState.Locked = false
			s.lockState.By = 0
		}
		return true
	}
	if s.lockState.Locked && s.lockState.By != controllerID && s.lockState.ExpiresAtUnixNano > nowUnixNano {
		return false
	}
	s.lockState.Locked = true
	s.lockState.By = controllerID
	s.lockState.ExpiresAtUnixNano = expiresAtUnixNano
	return true
}

// ExpireLock clears a held lock once its deadline has passed (spec.md
// §4.6 step 4 "expire lock holders"). Safe to call every tick regardless of
// lock state; a no-op when unlocked or not yet expired.
func (s *Store) ExpireLock(now time.Time) {
	if s.lockState.Locked && s.lockState.ExpiresAtUnixNano <= now.UnixNano() {
		s.lockState.Locked = false
		s.lockState.By = 0
	}
}

// IsMutationAllowed reports whether controllerID may issue a mutating AECP
// command, i.e. the entity is unacquired or acquired by controllerID itself
// (spec.md Testable Property 10).
func (s *Store) IsMutationAllowed(controllerID avdecc.EntityID) bool {
	if !s.acquireState.Acquired {
		return true
	}
	return s.acquireState.By == controllerID
}

// Dump renders every descriptor in configIdx as a table, grounded on the
// teacher pack's preference for tablewriter-backed diagnostic output.
func (s *Store) Dump(configIdx uint16) string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Type", "Index", "Summary"})

	m := s.descriptors[int(configIdx)]
	keys := make([]descriptorKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Index < keys[j].Index
	})

	for _, k := range keys {
		table.Append([]string{k.Type.String(), fmt.Sprint(k.Index), summarize(m[k])})
	}
	table.Render()
	return sb.String()
}

func summarize(d any) string {
	switch v := d.(type) {
	case StreamDescriptor:
		return fmt.Sprintf("%s format=0x%016X avb_if=%d", v.ObjectName, v.StreamFormat, v.AVBInterfaceIndex)
	case AudioClusterDescriptor:
		return fmt.Sprintf("%s channels=%d", v.ObjectName, v.ChannelCount)
	case AVBInterfaceDescriptor:
		return fmt.Sprintf("%s mac=%s", v.ObjectName, v.MacAddress)
	default:
		return fmt.Sprintf("%+v", d)
	}
}
