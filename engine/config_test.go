package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidFillsDefaults(t *testing.T) {
	var c Config
	require.NoError(t, c.Valid())

	assert.Equal(t, DefaultTickInterval, c.TickInterval)
	assert.Equal(t, DefaultSendQueueSize, c.SendQueueSize)
	assert.NotZero(t, c.AdvertiseInterval)
	assert.NotZero(t, c.DiscoveryInterval)
	assert.NotZero(t, c.ACMP.CommandTimeout)
	assert.NotZero(t, c.ACMP.MaxRetries)
	assert.NotZero(t, c.AECP.CommandTimeout)
	assert.NotZero(t, c.AECP.MaxRetries)
}

func TestConfigValidPreservesExplicitOverrides(t *testing.T) {
	c := Config{TickInterval: 50 * time.Millisecond, SendQueueSize: 8}
	require.NoError(t, c.Valid())

	assert.Equal(t, 50*time.Millisecond, c.TickInterval)
	assert.Equal(t, 8, c.SendQueueSize)
	assert.NotZero(t, c.AdvertiseInterval)
}
