package aecp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// bus wires a Dispatcher and Controller together in-process, the way the
// engine's single-threaded dispatch would: every encoded frame goes straight
// to the peer's handler based on message_type.
type bus struct {
	t          *testing.T
	dispatcher *Dispatcher
	controller *Controller
}

func (b *bus) SendAECP(frame []byte) error {
	p, err := Decode(frame)
	require.NoError(b.t, err)
	switch p.MessageType {
	case AEMCommand:
		resp, ok := b.dispatcher.Handle(p)
		if !ok {
			return nil
		}
		encoded, err := resp.Encode()
		if err != nil {
			return err
		}
		replay, err := Decode(encoded)
		if err != nil {
			return err
		}
		b.controller.HandleResponse(replay)
		return nil
	case AEMResponse:
		b.controller.HandleResponse(p)
		return nil
	}
	return nil
}

func newTestStore() *entitymodel.Store {
	s := entitymodel.NewStore(entitymodel.EntityDescriptor{
		EntityID:             0xAA,
		EntityModelID:        0xAA01,
		ConfigurationsCount:  1,
		CurrentConfiguration: 0,
	})
	_ = s.SetDescriptor(0, entitymodel.DescStreamInput, 0, entitymodel.StreamDescriptor{ObjectName: "in0"})
	return s
}

// recordingSender captures every frame sent to it, used to observe the
// dispatcher's unsolicited notifications independently of the request/
// response path.
type recordingSender struct {
	frames [][]byte
}

func (r *recordingSender) SendAECP(frame []byte) error {
	r.frames = append(r.frames, frame)
	return nil
}

func newBus(t *testing.T, clk clock.Clock, store *entitymodel.Store) *bus {
	t.Helper()
	b := &bus{t: t}
	b.dispatcher = NewDispatcher(0xAA, store, &recordingSender{}, clk, clog.NewLogger("aecp.dispatcher"), nil)
	b.controller = NewController(0x11, b, clk, clog.NewLogger("aecp.controller"), ControllerConfig{})
	return b
}

func TestDispatcherReadDescriptorEntity(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	b := newBus(t, clk, store)

	var gotStatus Status
	var gotData []byte
	_, err := b.controller.SendCommand(0xAA, CmdReadDescriptor, descRefRequest(entitymodel.DescEntity, 0), func(resp PDU, ok bool) {
		require.True(t, ok)
		gotStatus = resp.Status
		gotData = resp.CommandSpecificData
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, gotStatus)

	entity, decoded := DecodeEntityDescriptor(stripDescRefHeader(gotData))
	require.True(t, decoded)
	assert.Equal(t, avdecc.EntityID(0xAA), entity.EntityID)
}

func TestDispatcherReadDescriptorNoSuchIndex(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	b := newBus(t, clk, store)

	var gotStatus Status
	_, err := b.controller.SendCommand(0xAA, CmdReadDescriptor, descRefRequest(entitymodel.DescStreamInput, 5), func(resp PDU, ok bool) {
		gotStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNoSuchDescriptor, gotStatus)
}

func TestDispatcherRejectsForeignTargetEntity(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	dispatcher := NewDispatcher(0xAA, store, nil, clk, clog.NewLogger("aecp.dispatcher"), nil)

	req := PDU{MessageType: AEMCommand, TargetEntityID: 0xFF, CommandType: CmdEntityAvailable}
	_, ok := dispatcher.Handle(req)
	assert.False(t, ok)
}

func TestDispatcherAcquireExclusivityBlocksOtherController(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	b := newBus(t, clk, store)

	var firstStatus, secondStatus Status
	_, err := b.controller.SendCommand(0xAA, CmdAcquireEntity, AcquireLockPayload{}.Encode(), func(resp PDU, ok bool) {
		firstStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, firstStatus)

	otherController := NewController(0x22, b, clk, clog.NewLogger("aecp.controller2"), ControllerConfig{})
	_, err = otherController.SendCommand(0xAA, CmdSetStreamFormat, make([]byte, 12), func(resp PDU, ok bool) {
		secondStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusEntityAcquired, secondStatus)
}

func TestDispatcherSetStreamFormatRejectedWhileStreaming(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	b := newBus(t, clk, store)

	startReq := streamRefRequest(entitymodel.DescStreamInput, 0)
	var startStatus Status
	_, err := b.controller.SendCommand(0xAA, CmdStartStreaming, startReq, func(resp PDU, ok bool) {
		startStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, startStatus)

	setReq := make([]byte, 12)
	binary.BigEndian.PutUint16(setReq[0:2], uint16(entitymodel.DescStreamInput))
	binary.BigEndian.PutUint16(setReq[2:4], 0)
	var setStatus Status
	_, err = b.controller.SendCommand(0xAA, CmdSetStreamFormat, setReq, func(resp PDU, ok bool) {
		setStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusStreamIsRunning, setStatus)
}

func TestDispatcherUnsolicitedNotificationFansOutOnChange(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newTestStore()
	b := newBus(t, clk, store)

	var registerStatus Status
	_, err := b.controller.SendCommand(0xAA, CmdRegisterUnsolicitedNotification, nil, func(resp PDU, ok bool) {
		registerStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, registerStatus)

	startReq := streamRefRequest(entitymodel.DescStreamInput, 0)
	var startStatus Status
	_, err = b.controller.SendCommand(0xAA, CmdStartStreaming, startReq, func(resp PDU, ok bool) {
		startStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, startStatus)

	recorder := b.dispatcher.send.(*recordingSender)
	require.Len(t, recorder.frames, 1)
	notice, err := Decode(recorder.frames[0])
	require.NoError(t, err)
	assert.True(t, notice.Unsolicited)
	assert.Equal(t, CmdStartStreaming, notice.CommandType)
}
