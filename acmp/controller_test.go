package acmp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
)

// bus wires a Controller, Listener and Talker together in-process, routing
// each encoded frame straight to the handler its message_type and target
// entity id designate, the way the engine's single-threaded dispatch would.
type bus struct {
	t          *testing.T
	controller *Controller
	listener   *Listener
	talker     *Talker
}

func (b *bus) SendACMP(frame []byte) error {
	p, err := Decode(frame)
	require.NoError(b.t, err)

	switch p.MessageType {
	case ConnectRxCommand:
		return b.listener.HandleConnectRxCommand(p)
	case DisconnectRxCommand:
		return b.listener.HandleDisconnectRxCommand(p)
	case ConnectTxCommand:
		return b.talker.HandleConnectTxCommand(p)
	case DisconnectTxCommand:
		return b.talker.HandleDisconnectTxCommand(p)
	case ConnectTxResponse, DisconnectTxResponse:
		return b.listener.HandleTalkerResponse(p)
	case ConnectRxResponse, DisconnectRxResponse, GetRxStateResponse, GetTxStateResponse:
		b.controller.HandleResponse(p)
		return nil
	case GetRxStateCommand:
		return b.listener.HandleGetRxState(p)
	case GetTxStateCommand:
		return b.talker.HandleGetTxState(p, GetTxStateResponse)
	}
	return nil
}

func newBus(t *testing.T, clk clock.Clock) *bus {
	t.Helper()
	const talkerID, listenerID, controllerID = avdecc.EntityID(0xAA), avdecc.EntityID(0xBB), avdecc.EntityID(0x11)
	b := &bus{t: t}
	b.controller = NewController(controllerID, b, clk, clog.NewLogger("acmp.controller"), ControllerConfig{})
	b.listener = NewListener(listenerID, b, clk, clog.NewLogger("acmp.listener"), 1, 0)
	b.talker = NewTalker(talkerID, b, clog.NewLogger("acmp.talker"), 1)
	return b
}

func TestACMPConnectSuccessScenario(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := newBus(t, clk)

	var gotStatus Status
	var gotOk bool
	var gotStreamID avdecc.StreamID
	_, err := b.controller.ConnectStream(0xAA, 0, 0xBB, 0, func(resp PDU, ok bool) {
		gotOk = ok
		gotStatus = resp.Status
		gotStreamID = resp.StreamID
	})
	require.NoError(t, err)

	require.True(t, gotOk)
	assert.Equal(t, StatusSuccess, gotStatus)
	assert.NotZero(t, gotStreamID)

	lk := ListenerKey{EntityID: 0xBB, UniqueID: 0}
	stream := b.listener.table.Get(lk)
	assert.True(t, stream.Connected)
	assert.Equal(t, uint16(1), stream.ConnectionCount)
}

func TestACMPConnectUnknownTalkerRejected(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := newBus(t, clk)

	var gotStatus Status
	_, err := b.controller.ConnectStream(0xCC, 0, 0xBB, 0, func(resp PDU, ok bool) {
		gotStatus = resp.Status
	})
	require.NoError(t, err)
	assert.Equal(t, StatusTalkerUnknownID, gotStatus)
}

func TestACMPControllerTimeoutProducesSyntheticStatus(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	// No listener/talker wired: every frame vanishes into the void.
	ctrl := NewController(0x11, &voidSender{}, clk, clog.NewLogger("acmp.controller"), ControllerConfig{
		CommandTimeout: 500 * time.Millisecond,
		MaxRetries:     1,
	})

	var done bool
	var status Status
	_, err := ctrl.ConnectStream(0xAA, 0, 0xFF, 0, func(resp PDU, ok bool) {
		done = true
		status = resp.Status
	})
	require.NoError(t, err)
	assert.False(t, done)

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, ctrl.Tick()) // resend, retry_count=1
	assert.False(t, done)

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, ctrl.Tick()) // retries exhausted
	assert.True(t, done)
	assert.Equal(t, StatusTimedOut, status)
}

type voidSender struct{}

func (voidSender) SendACMP(frame []byte) error { return nil }
