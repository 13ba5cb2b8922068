package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/acmp"
	"github.com/zarfld/go-avdecc/adp"
	"github.com/zarfld/go-avdecc/aecp"
	"github.com/zarfld/go-avdecc/avdecc"
	"github.com/zarfld/go-avdecc/clock"
	"github.com/zarfld/go-avdecc/clog"
	"github.com/zarfld/go-avdecc/entitymodel"
)

// hub is a fully-connected in-memory broadcast bus used to wire several
// test engines together without a real NIC: every Send fans out to every
// other member's inbox, the way the acmp/aecp package tests wire a
// request/response bus directly in their own _test.go files.
type hub struct {
	mu      sync.Mutex
	members map[avdecc.MacAddress]*hubIface
}

func newHub() *hub { return &hub{members: make(map[avdecc.MacAddress]*hubIface)} }

func (h *hub) join(mac avdecc.MacAddress) *hubIface {
	i := &hubIface{hub: h, mac: mac}
	h.mu.Lock()
	h.members[mac] = i
	h.mu.Unlock()
	return i
}

type hubIface struct {
	hub *hub
	mac avdecc.MacAddress

	mu    sync.Mutex
	inbox [][]byte
}

func (i *hubIface) Send(_ avdecc.MacAddress, frame []byte) error {
	cp := append([]byte(nil), frame...)
	i.hub.mu.Lock()
	defer i.hub.mu.Unlock()
	for mac, m := range i.hub.members {
		if mac == i.mac {
			continue
		}
		m.mu.Lock()
		m.inbox = append(m.inbox, cp)
		m.mu.Unlock()
	}
	return nil
}

func (i *hubIface) Receive() ([]byte, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.inbox) == 0 {
		return nil, false
	}
	f := i.inbox[0]
	i.inbox = i.inbox[1:]
	return f, true
}

func (i *hubIface) LocalMAC() avdecc.MacAddress { return i.mac }

func macFor(entityID avdecc.EntityID) avdecc.MacAddress {
	var mac avdecc.MacAddress
	mac[0] = byte(entityID >> 40)
	mac[1] = byte(entityID >> 32)
	mac[2] = byte(entityID >> 24)
	mac[3] = byte(entityID >> 16)
	mac[4] = byte(entityID >> 8)
	mac[5] = byte(entityID)
	return mac
}

func newTestEngine(t *testing.T, h *hub, entityID avdecc.EntityID, streamInputs, streamOutputs uint16, clk clock.Clock) *Engine {
	t.Helper()
	store := entitymodel.NewStore(entitymodel.EntityDescriptor{
		EntityID:            entityID,
		EntityModelID:       0x1001020304050607,
		ConfigurationsCount: 1,
	})
	iface := h.join(macFor(entityID))
	e, err := New(Params{
		Store: store,
		Snapshot: adp.Snapshot{
			EntityID:      entityID,
			EntityModelID: 0x1001020304050607,
		},
		Interface:         iface,
		Clock:             clk,
		Log:               clog.NewLogger("engine-test"),
		StreamInputCount:  streamInputs,
		StreamOutputCount: streamOutputs,
	})
	require.NoError(t, err)
	return e
}

func tickAll(t *testing.T, engines ...*Engine) {
	t.Helper()
	for _, e := range engines {
		require.NoError(t, e.Tick())
	}
}

// TestEngineDiscoveryRoundTrip exercises spec.md S1: a freshly-started
// entity's first ENTITY_AVAILABLE reaches a controller engine's discovery
// table with available_index=0 and the 62-second valid_time encoded as wire
// value 31.
func TestEngineDiscoveryRoundTrip(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	h := newHub()
	a := newTestEngine(t, h, 0x0001020304050607, 0, 0, clk)
	controller := newTestEngine(t, h, 0x2222222222222222, 0, 0, clk)

	require.NoError(t, a.Start())
	tickAll(t, a, controller)

	remote, ok := controller.Lookup(0x0001020304050607)
	require.True(t, ok)
	assert.Equal(t, avdecc.AvailableIndex(0), remote.AvailableIndex)
	assert.Equal(t, uint8(31), remote.ValidTimeWire)
}

// TestEngineAvailableIndexBumpsOnConfigChange exercises spec.md S2: a
// SET_CONFIGURATION accepted through the AECP dispatcher must trigger the
// advertiser's available_index to increment by exactly one on the next
// ENTITY_AVAILABLE.
func TestEngineAvailableIndexBumpsOnConfigChange(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	h := newHub()
	a := newTestEngine(t, h, 0x0001020304050607, 0, 0, clk)
	a.store.AddConfiguration(entitymodel.ConfigurationDescriptor{})
	controller := newTestEngine(t, h, 0x2222222222222222, 0, 0, clk)

	require.NoError(t, a.Start())
	tickAll(t, a, controller)

	before, ok := controller.Lookup(0x0001020304050607)
	require.True(t, ok)
	assert.Equal(t, avdecc.AvailableIndex(0), before.AvailableIndex)

	req := make([]byte, 2)
	req[1] = 1 // SET_CONFIGURATION(1)
	var status aecp.Status
	_, err := controller.SendAECPCommand(0x0001020304050607, aecp.CmdSetConfiguration, req, func(resp aecp.PDU, ok bool) {
		require.True(t, ok)
		status = resp.Status
	})
	require.NoError(t, err)

	tickAll(t, controller, a, controller)
	assert.Equal(t, aecp.StatusSuccess, status)

	after, ok := controller.Lookup(0x0001020304050607)
	require.True(t, ok)
	assert.Equal(t, before.AvailableIndex+1, after.AvailableIndex)
	assert.Equal(t, uint16(1), after.Snapshot.CurrentConfigurationIdx)
}

// TestEngineACMPConnectSuccess exercises spec.md S3: a controller's
// CONNECT_RX_COMMAND to a listener, forwarded to a talker, resolves back to
// the controller with the talker's deterministically-derived stream_id and
// destination MAC.
func TestEngineACMPConnectSuccess(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	h := newHub()
	const talkerID avdecc.EntityID = 0x0000000000AA0000
	const listenerID avdecc.EntityID = 0x0000000000BB0000

	talker := newTestEngine(t, h, talkerID, 0, 1, clk)
	listener := newTestEngine(t, h, listenerID, 1, 0, clk)
	controller := newTestEngine(t, h, 0x1111111111111111, 0, 0, clk)

	var status acmp.Status
	var streamID avdecc.StreamID
	var destMAC avdecc.MacAddress
	_, err := controller.ConnectStream(talkerID, 0, listenerID, 0, func(resp acmp.PDU, ok bool) {
		require.True(t, ok)
		status = resp.Status
		streamID = resp.StreamID
		destMAC = resp.StreamDestMAC
	})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		tickAll(t, controller, listener, talker)
	}

	assert.Equal(t, acmp.StatusSuccess, status)
	assert.Equal(t, acmp.DeriveStreamID(talkerID, 0), streamID)
	assert.Equal(t, acmp.DeriveStreamDestMAC(talkerID, 0), destMAC)
}

// TestEngineEnumerateReadsEntityDescriptor exercises spec.md S5: an
// enumeration's READ_DESCRIPTOR(ENTITY) step returns the exact ENTITY
// descriptor bytes the target would serialize.
func TestEngineEnumerateReadsEntityDescriptor(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	h := newHub()
	a := newTestEngine(t, h, 0x0001020304050607, 0, 0, clk)
	controller := newTestEngine(t, h, 0x1111111111111111, 0, 0, clk)

	var result *aecp.EnumerationResult
	require.NoError(t, controller.Enumerate(0x0001020304050607, func(r *aecp.EnumerationResult) { result = r }))

	for i := 0; i < 6; i++ {
		tickAll(t, controller, a)
	}

	require.NotNil(t, result)
	require.NoError(t, result.Fatal)
	assert.True(t, result.Done)
	assert.Equal(t, avdecc.EntityID(0x0001020304050607), result.Entity.EntityID)
}
