// Package l2test provides engine.NetworkInterface test doubles: an
// in-memory loopback pair for fast unit tests, and a gopacket/layers-backed
// Ethernet framer for tests that need to exercise real frame parsing
// (spec.md §6.1, §6.2). Neither implementation touches a real NIC.
package l2test

import (
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/zarfld/go-avdecc/avdecc"
)

// Loopback is a bare in-memory engine.NetworkInterface: Send on one side
// enqueues directly onto the peer's Receive buffer, with no Ethernet
// envelope at all.
type Loopback struct {
	mu    sync.Mutex
	mac   avdecc.MacAddress
	peer  *Loopback
	inbox [][]byte
}

// NewLoopbackPair builds two Loopback interfaces wired to each other, the
// simplest possible stand-in for two entities sharing a network segment.
func NewLoopbackPair(macA, macB avdecc.MacAddress) (*Loopback, *Loopback) {
	a := &Loopback{mac: macA}
	b := &Loopback{mac: macB}
	a.peer = b
	b.peer = a
	return a, b
}

// Send ignores destination (a loopback pair only ever has one peer) and
// enqueues a copy of frame onto the peer's inbox.
func (l *Loopback) Send(_ avdecc.MacAddress, frame []byte) error {
	cp := append([]byte(nil), frame...)
	l.peer.mu.Lock()
	l.peer.inbox = append(l.peer.inbox, cp)
	l.peer.mu.Unlock()
	return nil
}

// Receive is non-blocking, returning ok=false when the inbox is empty.
func (l *Loopback) Receive() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, false
	}
	frame := l.inbox[0]
	l.inbox = l.inbox[1:]
	return frame, true
}

func (l *Loopback) LocalMAC() avdecc.MacAddress { return l.mac }

// BytePipe is a minimal unidirectional-send FIFO, the transport
// EthernetFramer wraps when a test wants a real Ethernet envelope around
// each AVDECC frame instead of Loopback's bare bytes.
type BytePipe struct {
	mu    sync.Mutex
	peer  *BytePipe
	inbox [][]byte
}

// NewBytePipePair builds two BytePipes wired to each other.
func NewBytePipePair() (*BytePipe, *BytePipe) {
	a := &BytePipe{}
	b := &BytePipe{}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *BytePipe) Send(frame []byte) error {
	cp := append([]byte(nil), frame...)
	p.peer.mu.Lock()
	p.peer.inbox = append(p.peer.inbox, cp)
	p.peer.mu.Unlock()
	return nil
}

func (p *BytePipe) Receive() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbox) == 0 {
		return nil, false
	}
	frame := p.inbox[0]
	p.inbox = p.inbox[1:]
	return frame, true
}

// EthernetFramer wraps a BytePipe and adds a real Ethernet header with
// EtherType 0x22F0 on send, stripping it back off on receive, built with
// gopacket/layers the way etrirepo-25G-Simulator parses its ONU/OLT
// Ethernet frames with gopacket.NewPacket — here exercising the
// serialization side of the same library as well.
type EthernetFramer struct {
	mac avdecc.MacAddress
	raw *BytePipe
}

// NewEthernetFramer builds a framer transmitting as mac over raw.
func NewEthernetFramer(mac avdecc.MacAddress, raw *BytePipe) *EthernetFramer {
	return &EthernetFramer{mac: mac, raw: raw}
}

// Send wraps payload in an Ethernet II frame addressed to destination.
func (f *EthernetFramer) Send(destination avdecc.MacAddress, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(f.mac[:]),
		DstMAC:       net.HardwareAddr(destination[:]),
		EthernetType: layers.EthernetType(avdecc.EtherType),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return err
	}
	return f.raw.Send(buf.Bytes())
}

// Receive parses the next queued Ethernet frame and returns its payload,
// dropping (ok=false) anything that isn't EtherType 0x22F0.
func (f *EthernetFramer) Receive() ([]byte, bool) {
	frame, ok := f.raw.Receive()
	if !ok {
		return nil, false
	}
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, false
	}
	eth, ok := ethLayer.(*layers.Ethernet)
	if !ok || eth.EthernetType != layers.EthernetType(avdecc.EtherType) {
		return nil, false
	}
	return eth.Payload, true
}

func (f *EthernetFramer) LocalMAC() avdecc.MacAddress { return f.mac }
