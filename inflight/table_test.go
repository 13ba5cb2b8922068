package inflight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zarfld/go-avdecc/clock"
)

func newTable(t *testing.T, cfg Config) (*Table[uint16], *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	return New[uint16](clk, cfg), clk
}

func TestTableInsertAndResolve(t *testing.T) {
	tbl, _ := newTable(t, Config{Timeout: time.Second, MaxRetries: 2})
	tbl.Insert(7, 0xAABBCCDD, 1, []byte{1, 2, 3})
	require.Equal(t, 1, tbl.Len())

	e, err := tbl.Resolve(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xAABBCCDD), e.TargetEntityID)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableResolveUnknownKey(t *testing.T) {
	tbl, _ := newTable(t, Config{Timeout: time.Second, MaxRetries: 1})
	_, err := tbl.Resolve(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableTickResendsThenExpires(t *testing.T) {
	tbl, clk := newTable(t, Config{Timeout: time.Second, MaxRetries: 1})
	tbl.Insert(1, 42, 5, []byte{0xAB})

	// Before timeout: nothing happens.
	assert.Empty(t, tbl.Tick())

	clk.Advance(time.Second)
	results := tbl.Tick()
	require.Len(t, results, 1)
	assert.True(t, results[0].Resend)
	assert.Equal(t, 1, results[0].Entry.RetryCount)
	assert.Equal(t, 1, tbl.Len())

	clk.Advance(time.Second)
	results = tbl.Tick()
	require.Len(t, results, 1)
	assert.True(t, results[0].Expired)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableZeroRetriesExpiresImmediately(t *testing.T) {
	tbl, clk := newTable(t, Config{Timeout: 500 * time.Millisecond, MaxRetries: 0})
	tbl.Insert(3, 1, 1, nil)

	clk.Advance(500 * time.Millisecond)
	results := tbl.Tick()
	require.Len(t, results, 1)
	assert.True(t, results[0].Expired)
}

func TestTableDefaultsFactorAndMaxTimeout(t *testing.T) {
	tbl, _ := newTable(t, Config{Timeout: time.Second, MaxRetries: 3})
	assert.Equal(t, 1.0, tbl.cfg.Factor)
	assert.Equal(t, time.Second, tbl.cfg.MaxTimeout)
}

func TestTablePeekDoesNotRemove(t *testing.T) {
	tbl, _ := newTable(t, Config{Timeout: time.Second, MaxRetries: 1})
	tbl.Insert(9, 1, 1, nil)

	e, ok := tbl.Peek(9)
	require.True(t, ok)
	assert.Equal(t, 0, e.RetryCount)
	assert.Equal(t, 1, tbl.Len())
}
