// Package engine implements the single-threaded scheduler (C6, spec.md
// §4.6) that ties the ADP, ACMP and AECP engines to one entity model store
// and one NetworkInterface.
package engine

import (
	"time"

	"github.com/imdario/mergo"
	"github.com/zarfld/go-avdecc/acmp"
	"github.com/zarfld/go-avdecc/adp"
	"github.com/zarfld/go-avdecc/aecp"
)

// DefaultTickInterval is the spec.md §4.6 fixed scheduler tick.
const DefaultTickInterval = 10 * time.Millisecond

// DefaultSendQueueSize is the spec.md §5 bounded send queue capacity.
const DefaultSendQueueSize = 128

// Config aggregates every tunable subsystem the engine owns, mirroring the
// way cs104.Config aggregates t0..t3/k/w into one validated struct.
type Config struct {
	TickInterval  time.Duration
	SendQueueSize int

	AdvertiseInterval time.Duration
	DiscoveryInterval time.Duration

	// TalkerTimeout bounds the listener's nested CONNECT_TX/DISCONNECT_TX
	// forward-to-talker wait (spec.md §4.3.3).
	TalkerTimeout time.Duration

	ACMP acmp.ControllerConfig
	AECP aecp.ControllerConfig
}

// DefaultConfig returns every field at its spec.md default.
func DefaultConfig() Config {
	return Config{
		TickInterval:      DefaultTickInterval,
		SendQueueSize:     DefaultSendQueueSize,
		AdvertiseInterval: adp.DefaultAdvertiseInterval,
		DiscoveryInterval: adp.DefaultDiscoveryInterval,
		TalkerTimeout:     acmp.DefaultCommandTimeout,
		ACMP: acmp.ControllerConfig{
			CommandTimeout: acmp.DefaultCommandTimeout,
			MaxRetries:     acmp.DefaultMaxRetries,
		},
		AECP: aecp.ControllerConfig{
			CommandTimeout: aecp.DefaultCommandTimeout,
			MaxRetries:     aecp.DefaultMaxRetries,
		},
	}
}

// Valid fills any zero-valued field of c from DefaultConfig() using
// mergo, generalizing the teacher's hand-rolled zero-check-and-default
// pattern (cs104.Config.Valid()) to a struct nesting the ACMP/AECP
// sub-configs.
func (c *Config) Valid() error {
	if err := mergo.Merge(c, DefaultConfig()); err != nil {
		return err
	}
	if err := c.ACMP.Valid(); err != nil {
		return err
	}
	return c.AECP.Valid()
}
