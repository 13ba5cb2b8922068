package avdecc

import "github.com/google/uuid"

// NewAssociationID derives a default AssociationID from a random v4 UUID's
// low 64 bits, for callers that want a collision-resistant default instead of
// hand-assigning one. Entities that already know their AssociationID (e.g.
// from a persisted identity) should not call this.
func NewAssociationID() AssociationID {
	id := uuid.New()
	b := id[8:16]
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return AssociationID(v)
}
