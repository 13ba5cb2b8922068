package engine

import "github.com/zarfld/go-avdecc/avdecc"

// NetworkInterface is the three-operation L2 transport boundary the engine
// is parameterized over (spec.md §6.1). Implementations must make Receive
// non-blocking; the scheduler drains it once per tick.
type NetworkInterface interface {
	Send(destination avdecc.MacAddress, frame []byte) error
	Receive() (frame []byte, ok bool)
	LocalMAC() avdecc.MacAddress
}
