package aecp

import (
	"encoding/binary"
	"fmt"

	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// DescriptorRef addresses one descriptor by (type, index), used both to
// queue READ_DESCRIPTOR requests and to key the enumeration result.
type DescriptorRef struct {
	Type  entitymodel.DescriptorType
	Index uint16
}

// EnumerationResult accumulates everything the fixed-order workflow reads
// off one remote entity (spec.md §4.4.6).
type EnumerationResult struct {
	Target        avdecc.EntityID
	Entity        entitymodel.EntityDescriptor
	Configuration entitymodel.ConfigurationDescriptor
	Descriptors   map[DescriptorRef][]byte
	StreamInfos   map[DescriptorRef]StreamInfo
	AVBInfos      map[uint16]AVBInfo
	Failed        []DescriptorRef
	Fatal         error
	Done          bool
}

// Enumerator drives the controller enumeration workflow (spec.md §4.4.6): a
// fixed-order pipeline of ENTITY_AVAILABLE, a best-effort
// REGISTER_UNSOLICITED_NOTIFICATION, then reading the ENTITY and
// CONFIGURATION descriptors, every descriptor the configuration lists, and
// finally GET_STREAM_INFO/GET_AVB_INFO for every stream/interface found.
//
// Each step is gated on the completion of the previous one via the
// Controller's single-threaded Completion callback, so the whole workflow
// advances inside the engine's tick loop without a dedicated goroutine.
type Enumerator struct {
	controller *Controller
	target     avdecc.EntityID

	result      *EnumerationResult
	descQueue   []DescriptorRef
	streamQueue []DescriptorRef
	avbQueue    []uint16
	onDone      func(*EnumerationResult)
}

// NewEnumerator builds an Enumerator for one target entity, issuing commands
// through controller.
func NewEnumerator(controller *Controller, target avdecc.EntityID) *Enumerator {
	return &Enumerator{controller: controller, target: target}
}

// Start begins the workflow; onDone is invoked exactly once, whether the
// workflow completes or fails fatally.
func (e *Enumerator) Start(onDone func(*EnumerationResult)) error {
	e.onDone = onDone
	e.result = &EnumerationResult{
		Target:      e.target,
		Descriptors: make(map[DescriptorRef][]byte),
		StreamInfos: make(map[DescriptorRef]StreamInfo),
		AVBInfos:    make(map[uint16]AVBInfo),
	}
	_, err := e.controller.SendCommand(e.target, CmdEntityAvailable, nil, e.onEntityAvailable)
	return err
}

func (e *Enumerator) finishFatal(err error) {
	e.result.Fatal = err
	e.result.Done = true
	if e.onDone != nil {
		e.onDone(e.result)
	}
}

func (e *Enumerator) onEntityAvailable(resp PDU, ok bool) {
	if !ok {
		e.finishFatal(fmt.Errorf("aecp: entity 0x%016X did not respond to ENTITY_AVAILABLE", uint64(e.target)))
		return
	}
	// Best-effort: ignore the response, register for unsolicited notifications
	// next regardless of outcome (spec.md §4.4.6).
	if _, err := e.controller.SendCommand(e.target, CmdRegisterUnsolicitedNotification, nil, e.onRegisterUnsolicited); err != nil {
		e.finishFatal(err)
	}
}

func (e *Enumerator) onRegisterUnsolicited(resp PDU, ok bool) {
	// Not every entity supports unsolicited notifications; proceed either way.
	if _, err := e.controller.SendCommand(e.target, CmdReadDescriptor, descRefRequest(entitymodel.DescEntity, 0), e.onReadEntity); err != nil {
		e.finishFatal(err)
	}
}

func (e *Enumerator) onReadEntity(resp PDU, ok bool) {
	if !ok || resp.Status != StatusSuccess {
		e.finishFatal(fmt.Errorf("aecp: READ_DESCRIPTOR(ENTITY) failed: ok=%v status=%s", ok, resp.Status))
		return
	}
	body := stripDescRefHeader(resp.CommandSpecificData)
	entity, decoded := DecodeEntityDescriptor(body)
	if !decoded {
		e.finishFatal(fmt.Errorf("aecp: malformed ENTITY descriptor body"))
		return
	}
	e.result.Entity = entity

	req := descRefRequest(entitymodel.DescConfiguration, entity.CurrentConfiguration)
	if _, err := e.controller.SendCommand(e.target, CmdReadDescriptor, req, e.onReadConfiguration); err != nil {
		e.finishFatal(err)
	}
}

func (e *Enumerator) onReadConfiguration(resp PDU, ok bool) {
	if !ok || resp.Status != StatusSuccess {
		e.finishFatal(fmt.Errorf("aecp: READ_DESCRIPTOR(CONFIGURATION) failed: ok=%v status=%s", ok, resp.Status))
		return
	}
	body := stripDescRefHeader(resp.CommandSpecificData)
	cfg, decoded := DecodeConfigurationDescriptor(body)
	if !decoded {
		e.finishFatal(fmt.Errorf("aecp: malformed CONFIGURATION descriptor body"))
		return
	}
	e.result.Configuration = cfg

	for dtype, count := range cfg.DescriptorCounts {
		for i := uint16(0); i < count; i++ {
			ref := DescriptorRef{Type: dtype, Index: i}
			e.descQueue = append(e.descQueue, ref)
			switch dtype {
			case entitymodel.DescStreamInput, entitymodel.DescStreamOutput:
				e.streamQueue = append(e.streamQueue, ref)
			case entitymodel.DescAVBInterface:
				e.avbQueue = append(e.avbQueue, i)
			}
		}
	}
	e.readNextDescriptor()
}

func (e *Enumerator) readNextDescriptor() {
	if len(e.descQueue) == 0 {
		e.readNextStreamInfo()
		return
	}
	ref := e.descQueue[0]
	e.descQueue = e.descQueue[1:]

	req := descRefRequest(ref.Type, ref.Index)
	if _, err := e.controller.SendCommand(e.target, CmdReadDescriptor, req, func(resp PDU, ok bool) {
		if !ok || resp.Status != StatusSuccess {
			e.result.Failed = append(e.result.Failed, ref)
		} else {
			e.result.Descriptors[ref] = stripDescRefHeader(resp.CommandSpecificData)
		}
		e.readNextDescriptor()
	}); err != nil {
		e.finishFatal(err)
	}
}

func (e *Enumerator) readNextStreamInfo() {
	if len(e.streamQueue) == 0 {
		e.readNextAVBInfo()
		return
	}
	ref := e.streamQueue[0]
	e.streamQueue = e.streamQueue[1:]

	req := streamRefRequest(ref.Type, ref.Index)
	if _, err := e.controller.SendCommand(e.target, CmdGetStreamInfo, req, func(resp PDU, ok bool) {
		if ok && resp.Status == StatusSuccess {
			if info, decoded := decodeStreamInfo(resp.CommandSpecificData); decoded {
				e.result.StreamInfos[ref] = info
			}
		} else {
			e.result.Failed = append(e.result.Failed, ref)
		}
		e.readNextStreamInfo()
	}); err != nil {
		e.finishFatal(err)
	}
}

func (e *Enumerator) readNextAVBInfo() {
	if len(e.avbQueue) == 0 {
		e.result.Done = true
		if e.onDone != nil {
			e.onDone(e.result)
		}
		return
	}
	idx := e.avbQueue[0]
	e.avbQueue = e.avbQueue[1:]

	req := make([]byte, 2)
	binary.BigEndian.PutUint16(req, idx)
	if _, err := e.controller.SendCommand(e.target, CmdGetAvbInfo, req, func(resp PDU, ok bool) {
		if ok && resp.Status == StatusSuccess {
			if info, decoded := decodeAVBInfo(resp.CommandSpecificData); decoded {
				e.result.AVBInfos[idx] = info
			}
		} else {
			e.result.Failed = append(e.result.Failed, DescriptorRef{Type: entitymodel.DescAVBInterface, Index: idx})
		}
		e.readNextAVBInfo()
	}); err != nil {
		e.finishFatal(err)
	}
}

// descRefRequest builds the 6-byte (configuration_index, descriptor_type,
// descriptor_index) request body used by READ_DESCRIPTOR (spec.md §4.4.2).
func descRefRequest(dtype entitymodel.DescriptorType, index uint16) []byte {
	b := make([]byte, 6)
	binary.BigEndian.PutUint16(b[2:4], uint16(dtype))
	binary.BigEndian.PutUint16(b[4:6], index)
	return b
}

// streamRefRequest builds the 4-byte (descriptor_type, descriptor_index)
// request body used by GET_STREAM_INFO (spec.md §4.4.2): unlike
// READ_DESCRIPTOR it addresses the current configuration implicitly.
func streamRefRequest(dtype entitymodel.DescriptorType, index uint16) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], uint16(dtype))
	binary.BigEndian.PutUint16(b[2:4], index)
	return b
}

// stripDescRefHeader drops the (descriptor_type, descriptor_index) echo the
// dispatcher prefixes onto READ_DESCRIPTOR responses.
func stripDescRefHeader(b []byte) []byte {
	if len(b) < 4 {
		return nil
	}
	return b[4:]
}

func decodeStreamInfo(b []byte) (StreamInfo, bool) {
	if len(b) < 24 {
		return StreamInfo{}, false
	}
	return StreamInfo{
		Flags:        binary.BigEndian.Uint32(b[4:8]),
		StreamFormat: binary.BigEndian.Uint64(b[8:16]),
		StreamID:     avdecc.StreamID(binary.BigEndian.Uint64(b[16:24])),
	}, true
}

func decodeAVBInfo(b []byte) (AVBInfo, bool) {
	if len(b) < 17 {
		return AVBInfo{}, false
	}
	return AVBInfo{
		GptpGrandmasterID: binary.BigEndian.Uint64(b[2:10]),
		PropagationDelay:  binary.BigEndian.Uint32(b[10:14]),
		DomainNumber:      b[14],
		Flags:             binary.BigEndian.Uint16(b[15:17]),
	}, true
}
