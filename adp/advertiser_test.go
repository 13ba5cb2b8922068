package adp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
)

type recordingSender struct {
	frames [][]byte
}

func (r *recordingSender) SendADP(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	r.frames = append(r.frames, cp)
	return nil
}

func (r *recordingSender) last() PDU {
	p, _ := Decode(r.frames[len(r.frames)-1])
	return p
}

func newTestAdvertiser() (*Advertiser, *recordingSender, *clock.Fake) {
	snap := Snapshot{EntityID: 0x001B92FFFE1234AB, EntityModelID: 0x001B92FFFE5678CD}
	sender := &recordingSender{}
	clk := clock.NewFake(time.Unix(0, 0))
	a := NewAdvertiser(snap, sender, clk, clog.NewLogger("adp.advertiser"))
	return a, sender, clk
}

func TestAdvertiserStartEmitsEntityAvailable(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())
	require.Len(t, sender.frames, 1)
	assert.Equal(t, StateAdvertise, a.State())
	assert.Equal(t, EntityAvailable, sender.last().MessageType)
}

func TestAdvertiserTickBeforeIntervalDoesNothing(t *testing.T) {
	a, sender, clk := newTestAdvertiser()
	require.NoError(t, a.Start())
	clk.Advance(time.Second) // interval default is 2s
	require.NoError(t, a.Tick())
	assert.Len(t, sender.frames, 1)
}

func TestAdvertiserTickAtIntervalReadvertisesWithoutBumpingIndex(t *testing.T) {
	a, sender, clk := newTestAdvertiser()
	require.NoError(t, a.Start())
	before := a.AvailableIndex()

	clk.Advance(DefaultAdvertiseInterval)
	require.NoError(t, a.Tick())

	require.Len(t, sender.frames, 2)
	assert.Equal(t, before, a.AvailableIndex())
}

func TestAdvertiserNotifyStateChangeBumpsIndexAndEmitsImmediately(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())
	before := a.AvailableIndex()

	require.NoError(t, a.NotifyStateChange())

	require.Len(t, sender.frames, 2)
	assert.Equal(t, before+1, a.AvailableIndex())
	assert.Equal(t, before+1, sender.last().AvailableIndex)
}

func TestAdvertiserHandleDiscoveryRequestMatchesLocalOrGlobal(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())

	require.NoError(t, a.HandleDiscoveryRequest(0))
	assert.Len(t, sender.frames, 2)

	require.NoError(t, a.HandleDiscoveryRequest(a.snapshot.EntityID))
	assert.Len(t, sender.frames, 3)
}

func TestAdvertiserHandleDiscoveryRequestIgnoresOtherEntity(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())

	require.NoError(t, a.HandleDiscoveryRequest(avdecc.EntityID(0xDEAD)))
	assert.Len(t, sender.frames, 1)
}

func TestAdvertiserStopEmitsDepartingWithZeroValidTime(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())
	require.NoError(t, a.Stop())

	last := sender.last()
	assert.Equal(t, EntityDeparting, last.MessageType)
	assert.Equal(t, uint8(0), last.ValidTime)
	assert.Equal(t, StateIdle, a.State())
}

func TestAdvertiserStopIsIdempotent(t *testing.T) {
	a, sender, _ := newTestAdvertiser()
	require.NoError(t, a.Start())
	require.NoError(t, a.Stop())
	n := len(sender.frames)
	require.NoError(t, a.Stop())
	assert.Len(t, sender.frames, n)
}
