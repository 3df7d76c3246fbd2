// Package nodeid identifies a single replica in the system.
package nodeid

import (
	"math/rand"
	"time"
)

// NodeId is a 16-bit identifier for a replica, total-ordered by numeric
// value. It is generated once per device and stored persistently.
type NodeId uint16

// Min is the smallest possible NodeId, used as the tiebreaker component of
// the HLC zero value.
const Min NodeId = 0

// Max is the largest possible NodeId.
const Max NodeId = ^NodeId(0)

// Random generates a NodeId seeded from the current wall clock. It is not
// cryptographically secure; uniqueness across devices is best-effort, and
// collisions are resolved the same way any other HLC tie is: by falling
// back to whichever other component differs.
func Random() NodeId {
	src := rand.NewSource(time.Now().UnixNano())
	return NodeId(rand.New(src).Intn(int(Max) + 1))
}

// Compare returns -1, 0 or 1 as n is less than, equal to, or greater than
// other.
func (n NodeId) Compare(other NodeId) int {
	switch {
	case n < other:
		return -1
	case n > other:
		return 1
	default:
		return 0
	}
}
