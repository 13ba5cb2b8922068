package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frame(kind frameKind, tag byte) outboundFrame {
	return outboundFrame{kind: kind, payload: []byte{tag}}
}

func TestSendQueueDrainsFIFO(t *testing.T) {
	q := newSendQueue(4)
	q.Push(frame(kindCommand, 1))
	q.Push(frame(kindAdvertise, 2))
	q.Push(frame(kindResponse, 3))

	got := q.Drain()
	assert.Equal(t, []byte{1}, got[0].payload)
	assert.Equal(t, []byte{2}, got[1].payload)
	assert.Equal(t, []byte{3}, got[2].payload)
	assert.Equal(t, 0, q.Len())
}

// TestSendQueueEvictsOldestCommandBeforeAdvertise exercises spec.md §5: on
// overflow, drop the oldest non-response/command frame first.
func TestSendQueueEvictsOldestCommandBeforeAdvertise(t *testing.T) {
	q := newSendQueue(2)
	q.Push(frame(kindCommand, 1))
	q.Push(frame(kindAdvertise, 2))
	q.Push(frame(kindCommand, 3)) // overflow: evicts the oldest command (tag 1)

	got := q.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, []byte{2}, got[0].payload)
	assert.Equal(t, []byte{3}, got[1].payload)
}

// TestSendQueueEvictsOldestAdvertiseWhenNoCommandPresent exercises the
// second eviction tier: once no command frame remains, drop the oldest
// periodic ADVERTISE instead.
func TestSendQueueEvictsOldestAdvertiseWhenNoCommandPresent(t *testing.T) {
	q := newSendQueue(2)
	q.Push(frame(kindAdvertise, 1))
	q.Push(frame(kindAdvertise, 2))
	q.Push(frame(kindAdvertise, 3)) // overflow: no command present, evicts tag 1

	got := q.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, []byte{2}, got[0].payload)
	assert.Equal(t, []byte{3}, got[1].payload)
}

// TestSendQueueNeverEvictsResponses exercises spec.md §5: "never responses"
// — a queue saturated with nothing but responses grows past capacity.
func TestSendQueueNeverEvictsResponses(t *testing.T) {
	q := newSendQueue(2)
	q.Push(frame(kindResponse, 1))
	q.Push(frame(kindResponse, 2))
	q.Push(frame(kindResponse, 3))

	assert.Equal(t, 3, q.Len())
	got := q.Drain()
	assert.Len(t, got, 3)
}
