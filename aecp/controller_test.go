package aecp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
)

type voidSender struct{}

func (voidSender) SendAECP(frame []byte) error { return nil }

func TestControllerTimeoutProducesSyntheticStatus(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := NewController(0x11, voidSender{}, clk, clog.NewLogger("aecp.controller"), ControllerConfig{
		CommandTimeout: 250 * time.Millisecond,
		MaxRetries:     2,
	})

	var done bool
	var status Status
	_, err := ctrl.SendCommand(0xFF, CmdEntityAvailable, nil, func(resp PDU, ok bool) {
		done = true
		status = resp.Status
	})
	require.NoError(t, err)
	assert.False(t, done)

	clk.Advance(250 * time.Millisecond)
	require.NoError(t, ctrl.Tick()) // resend, retry_count=1
	assert.False(t, done)

	clk.Advance(250 * time.Millisecond)
	require.NoError(t, ctrl.Tick()) // resend, retry_count=2
	assert.False(t, done)

	clk.Advance(250 * time.Millisecond)
	require.NoError(t, ctrl.Tick()) // retries exhausted
	assert.True(t, done)
	assert.Equal(t, StatusTimedOut, status)
}

func TestControllerHandleResponseDropsUnmatchedSequence(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := NewController(0x11, voidSender{}, clk, clog.NewLogger("aecp.controller"), ControllerConfig{})

	// No SendCommand issued; an unsolicited or stray response must not panic
	// or find a pending entry.
	ctrl.HandleResponse(PDU{SequenceID: 99, Status: StatusSuccess})
	assert.Equal(t, 0, ctrl.table.Len())
}

func TestControllerConfigValidDefaults(t *testing.T) {
	cfg := ControllerConfig{}
	require.NoError(t, cfg.Valid())
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}
