package aecp

import (
	"encoding/binary"
	"time"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// DefaultLockExpiry is the spec.md §4.4.4 default lock hold duration.
const DefaultLockExpiry = 60 * time.Second

// StreamInfo is the dynamic per-stream state AECP reads/writes (spec.md
// §3.4 stream_info).
type StreamInfo struct {
	Flags           uint32
	StreamFormat    uint64
	StreamID        avdecc.StreamID
	DestMAC         avdecc.MacAddress
	VlanID          uint16
	StreamingActive bool
}

// AVBInfo is the dynamic per-interface gPTP state (spec.md §3.4 avb_info).
type AVBInfo struct {
	GptpGrandmasterID uint64
	PropagationDelay  uint32
	DomainNumber      uint8
	Flags             uint16
}

// Sender transmits an encoded AECP frame to the engine's L2 transport.
type Sender interface {
	SendAECP(frame []byte) error
}

// streamKey addresses one STREAM_INPUT or STREAM_OUTPUT by type+index.
type streamKey struct {
	Type  entitymodel.DescriptorType
	Index uint16
}

// Dispatcher implements the local entity's AECP command handling (spec.md
// §4.4.1-.2): acquire/lock enforcement, handler lookup, and unsolicited
// notification fan-out.
type Dispatcher struct {
	entityID avdecc.EntityID
	store    *entitymodel.Store
	send     Sender
	clock    clock.Clock
	log      clog.Clog

	// onStateChange is invoked after any successful mutating command so the
	// caller can bump available_index and re-advertise (spec.md §4.2.1,
	// §4.4.2 "MUST trigger §4.2.1's available_index increment").
	onStateChange func()

	streamInfo  map[streamKey]StreamInfo
	avbInfo     map[uint16]AVBInfo
	subscribers map[avdecc.EntityID]bool
}

// NewDispatcher builds a Dispatcher for entityID backed by store.
func NewDispatcher(entityID avdecc.EntityID, store *entitymodel.Store, send Sender, clk clock.Clock, log clog.Clog, onStateChange func()) *Dispatcher {
	return &Dispatcher{
		entityID:      entityID,
		store:         store,
		send:          send,
		clock:         clk,
		log:           log,
		onStateChange: onStateChange,
		streamInfo:    make(map[streamKey]StreamInfo),
		avbInfo:       make(map[uint16]AVBInfo),
		subscribers:   make(map[avdecc.EntityID]bool),
	}
}

// SetAVBInfo seeds the dynamic gPTP state for an AVB_INTERFACE index.
func (d *Dispatcher) SetAVBInfo(interfaceIndex uint16, info AVBInfo) {
	d.avbInfo[interfaceIndex] = info
}

var mutatingCommands = map[CommandType]bool{
	CmdWriteDescriptor:     true,
	CmdSetConfiguration:    true,
	CmdSetStreamFormat:     true,
	CmdSetStreamInfo:       true,
	CmdStartStreaming:      true,
	CmdStopStreaming:       true,
	CmdAddAudioMappings:    true,
	CmdRemoveAudioMappings: true,
}

// Handle processes one ingress AEM_COMMAND and returns the AEM_RESPONSE PDU
// (spec.md §4.4.1). ok is false when the command addresses a different
// entity and must be silently dropped.
func (d *Dispatcher) Handle(req PDU) (resp PDU, ok bool) {
	if req.TargetEntityID != d.entityID {
		return PDU{}, false
	}

	resp = req
	resp.MessageType = AEMResponse
	resp.TargetEntityID = d.entityID

	if mutatingCommands[req.CommandType] && !d.store.IsMutationAllowed(req.ControllerEntityID) {
		resp.Status = StatusEntityAcquired
		return resp, true
	}
	if mutatingCommands[req.CommandType] && d.isLockedByOther(req.ControllerEntityID) {
		resp.Status = StatusEntityLocked
		return resp, true
	}

	status, data, changed := d.dispatch(req)
	resp.Status = status
	resp.CommandSpecificData = data

	if changed {
		d.refreshLock(req.ControllerEntityID)
		if d.onStateChange != nil {
			d.onStateChange()
		}
		d.notifySubscribers(req.CommandType, data)
	}
	return resp, true
}

func (d *Dispatcher) isLockedByOther(controllerID avdecc.EntityID) bool {
	ls := d.store.Lock()
	if !ls.Locked || ls.By == controllerID {
		return false
	}
	return ls.ExpiresAtUnixNano > d.clock.Now().UnixNano()
}

func (d *Dispatcher) refreshLock(controllerID avdecc.EntityID) {
	ls := d.store.Lock()
	if ls.Locked && ls.By == controllerID {
		d.store.TryLock(controllerID, d.clock.Now().Add(DefaultLockExpiry).UnixNano(), d.clock.Now().UnixNano(), false)
	}
}

func (d *Dispatcher) dispatch(req PDU) (status Status, data []byte, changed bool) {
	switch req.CommandType {
	case CmdEntityAvailable, CmdControllerAvailable:
		return StatusSuccess, nil, false

	case CmdReadDescriptor:
		return d.handleReadDescriptor(req.CommandSpecificData)

	case CmdAcquireEntity:
		return d.handleAcquire(req)

	case CmdLockEntity:
		return d.handleLock(req)

	case CmdGetConfiguration:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, d.store.Entity().CurrentConfiguration)
		return StatusSuccess, b, false

	case CmdSetConfiguration:
		return d.handleSetConfiguration(req.CommandSpecificData)

	case CmdGetStreamFormat:
		return d.handleGetStreamFormat(req.CommandSpecificData)

	case CmdSetStreamFormat:
		return d.handleSetStreamFormat(req.CommandSpecificData)

	case CmdGetStreamInfo:
		return d.handleGetStreamInfo(req.CommandSpecificData)

	case CmdSetStreamInfo:
		return d.handleSetStreamInfo(req.CommandSpecificData)

	case CmdStartStreaming:
		return d.handleStreamingToggle(req.CommandSpecificData, true)

	case CmdStopStreaming:
		return d.handleStreamingToggle(req.CommandSpecificData, false)

	case CmdGetAvbInfo:
		return d.handleGetAvbInfo(req.CommandSpecificData)

	case CmdRegisterUnsolicitedNotification:
		d.subscribers[req.ControllerEntityID] = true
		return StatusSuccess, nil, false

	case CmdDeregisterUnsolicitedNotification:
		delete(d.subscribers, req.ControllerEntityID)
		return StatusSuccess, nil, false

	case CmdGetDynamicInfo:
		// Milan extension (spec.md §4.4.2): sub-query layout not formalized
		// here, per spec.md §9 Open Questions.
		return StatusNotSupported, nil, false

	default:
		return StatusNotImplemented, nil, false
	}
}

func (d *Dispatcher) handleReadDescriptor(data []byte) (Status, []byte, bool) {
	if len(data) < 6 {
		return StatusBadArguments, nil, false
	}
	configIdx := binary.BigEndian.Uint16(data[0:2])
	dtype := entitymodel.DescriptorType(binary.BigEndian.Uint16(data[2:4]))
	dindex := binary.BigEndian.Uint16(data[4:6])

	header := make([]byte, 4)
	binary.BigEndian.PutUint16(header[0:2], uint16(dtype))
	binary.BigEndian.PutUint16(header[2:4], dindex)

	if dtype == entitymodel.DescEntity {
		return StatusSuccess, append(header, EncodeEntityDescriptor(d.store.Entity())...), false
	}
	if dtype == entitymodel.DescConfiguration {
		cfg, ok := d.store.Configuration(dindex)
		if !ok {
			return StatusNoSuchDescriptor, nil, false
		}
		return StatusSuccess, append(header, EncodeConfigurationDescriptor(cfg)...), false
	}

	desc, ok := d.store.GetDescriptor(configIdx, dtype, dindex)
	if !ok {
		return StatusNoSuchDescriptor, nil, false
	}
	return StatusSuccess, append(header, EncodeGenericDescriptor(desc)...), false
}

func (d *Dispatcher) handleAcquire(req PDU) (Status, []byte, bool) {
	p, ok := DecodeAcquireLockPayload(req.CommandSpecificData)
	if !ok {
		return StatusBadArguments, nil, false
	}
	flags := AcquireFlags(p.Flags)
	if !d.store.TryAcquire(req.ControllerEntityID, flags.Has(AcquireFlagRelease)) {
		return StatusEntityAcquired, p.Encode(), false
	}
	return StatusSuccess, p.Encode(), true
}

func (d *Dispatcher) handleLock(req PDU) (Status, []byte, bool) {
	p, ok := DecodeAcquireLockPayload(req.CommandSpecificData)
	if !ok {
		return StatusBadArguments, nil, false
	}
	flags := AcquireFlags(p.Flags)
	now := d.clock.Now()
	expiresAt := now.Add(DefaultLockExpiry).UnixNano()
	if !d.store.TryLock(req.ControllerEntityID, expiresAt, now.UnixNano(), flags.Has(AcquireFlagRelease)) {
		return StatusEntityLocked, p.Encode(), false
	}
	return StatusSuccess, p.Encode(), true
}

func (d *Dispatcher) handleSetConfiguration(data []byte) (Status, []byte, bool) {
	if len(data) < 2 {
		return StatusBadArguments, nil, false
	}
	idx := binary.BigEndian.Uint16(data[0:2])
	if err := d.store.SetCurrentConfiguration(idx); err != nil {
		return StatusBadArguments, nil, false
	}
	return StatusSuccess, data[:2], true
}

func (d *Dispatcher) handleGetStreamFormat(data []byte) (Status, []byte, bool) {
	key, ok := parseDescRef(data)
	if !ok {
		return StatusBadArguments, nil, false
	}
	desc, exists := d.store.GetDescriptor(0, key.Type, key.Index)
	if !exists {
		return StatusNoSuchDescriptor, nil, false
	}
	sd, ok := desc.(entitymodel.StreamDescriptor)
	if !ok {
		return StatusNoSuchDescriptor, nil, false
	}
	out := make([]byte, 12)
	binary.BigEndian.PutUint16(out[0:2], uint16(key.Type))
	binary.BigEndian.PutUint16(out[2:4], key.Index)
	binary.BigEndian.PutUint64(out[4:12], sd.StreamFormat)
	return StatusSuccess, out, false
}

func (d *Dispatcher) handleSetStreamFormat(data []byte) (Status, []byte, bool) {
	if len(data) < 12 {
		return StatusBadArguments, nil, false
	}
	key := streamKey{Type: entitymodel.DescriptorType(binary.BigEndian.Uint16(data[0:2])), Index: binary.BigEndian.Uint16(data[2:4])}
	format := binary.BigEndian.Uint64(data[4:12])

	if info, active := d.streamInfo[key]; active && info.StreamingActive {
		return StatusStreamIsRunning, nil, false
	}

	descAny, exists := d.store.GetDescriptor(0, key.Type, key.Index)
	if !exists {
		return StatusNoSuchDescriptor, nil, false
	}
	sd, ok := descAny.(entitymodel.StreamDescriptor)
	if !ok {
		return StatusNoSuchDescriptor, nil, false
	}
	sd.StreamFormat = format
	if err := d.store.SetDescriptor(0, key.Type, key.Index, sd); err != nil {
		return StatusBadArguments, nil, false
	}
	return StatusSuccess, data[:12], true
}

func (d *Dispatcher) handleGetStreamInfo(data []byte) (Status, []byte, bool) {
	key, ok := parseDescRef(data)
	if !ok {
		return StatusBadArguments, nil, false
	}
	info := d.streamInfo[key]
	if info.StreamFormat == 0 {
		if descAny, ok := d.store.GetDescriptor(0, key.Type, key.Index); ok {
			if sd, ok := descAny.(entitymodel.StreamDescriptor); ok {
				info.StreamFormat = sd.StreamFormat
			}
		}
	}
	out := make([]byte, 24)
	binary.BigEndian.PutUint16(out[0:2], uint16(key.Type))
	binary.BigEndian.PutUint16(out[2:4], key.Index)
	binary.BigEndian.PutUint32(out[4:8], info.Flags)
	binary.BigEndian.PutUint64(out[8:16], info.StreamFormat)
	binary.BigEndian.PutUint64(out[16:24], uint64(info.StreamID))
	return StatusSuccess, out, false
}

func (d *Dispatcher) handleSetStreamInfo(data []byte) (Status, []byte, bool) {
	if len(data) < 16 {
		return StatusBadArguments, nil, false
	}
	key := streamKey{Type: entitymodel.DescriptorType(binary.BigEndian.Uint16(data[0:2])), Index: binary.BigEndian.Uint16(data[2:4])}
	info := d.streamInfo[key]
	info.Flags = binary.BigEndian.Uint32(data[4:8])
	info.StreamFormat = binary.BigEndian.Uint64(data[8:16])
	d.streamInfo[key] = info
	return StatusSuccess, data[:16], true
}

func (d *Dispatcher) handleStreamingToggle(data []byte, start bool) (Status, []byte, bool) {
	key, ok := parseDescRef(data)
	if !ok {
		return StatusBadArguments, nil, false
	}
	info := d.streamInfo[key]
	info.StreamingActive = start
	d.streamInfo[key] = info
	return StatusSuccess, data[:4], true
}

func (d *Dispatcher) handleGetAvbInfo(data []byte) (Status, []byte, bool) {
	if len(data) < 2 {
		return StatusBadArguments, nil, false
	}
	idx := binary.BigEndian.Uint16(data[0:2])
	info, ok := d.avbInfo[idx]
	if !ok {
		return StatusNoSuchDescriptor, nil, false
	}
	out := make([]byte, 17)
	binary.BigEndian.PutUint16(out[0:2], idx)
	binary.BigEndian.PutUint64(out[2:10], info.GptpGrandmasterID)
	binary.BigEndian.PutUint32(out[10:14], info.PropagationDelay)
	out[14] = info.DomainNumber
	binary.BigEndian.PutUint16(out[15:17], info.Flags)
	return StatusSuccess, out, false
}

func (d *Dispatcher) notifySubscribers(cmd CommandType, data []byte) {
	if len(d.subscribers) == 0 {
		return
	}
	for controllerID := range d.subscribers {
		notice := PDU{
			MessageType:         AEMResponse,
			Status:              StatusSuccess,
			TargetEntityID:      controllerID,
			ControllerEntityID:  d.entityID,
			Unsolicited:         true,
			CommandType:         cmd,
			CommandSpecificData: data,
		}
		frame, err := notice.Encode()
		if err != nil {
			continue
		}
		_ = d.send.SendAECP(frame)
	}
}

func parseDescRef(data []byte) (streamKey, bool) {
	if len(data) < 4 {
		return streamKey{}, false
	}
	return streamKey{
		Type:  entitymodel.DescriptorType(binary.BigEndian.Uint16(data[0:2])),
		Index: binary.BigEndian.Uint16(data[2:4]),
	}, true
}
