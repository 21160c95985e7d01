package network

import "github.com/google/uuid"

// NodeID is the stable identifier of a node. It survives snapshots.
type NodeID string

// NewNodeID returns a fresh random identifier.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool { return id == "" }

// Short returns the first eight characters for log and error messages.
func (id NodeID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// ValidNodeID reports whether s parses as a UUID.
func ValidNodeID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
