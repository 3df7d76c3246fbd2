// Package hlc implements a Hybrid Logical Clock: a totally-ordered triple
// of (wall timestamp, logical counter, node id) that stays monotone across
// local ticks and remote receives, and recovers gracefully from clock
// drift between devices.
package hlc

import (
	"fmt"
	"math"
	"time"

	"github.com/bytes-zone/beeps/pkg/nodeid"
)

// HLC is a Hybrid Logical Clock value. The zero Go value is NOT a valid
// HLC; use New or Zero.
type HLC struct {
	timestamp time.Time
	counter   uint16
	node      nodeid.NodeId
}

// New creates an HLC for node with the current wall time, truncated to the
// second, and a zero counter.
func New(node nodeid.NodeId) HLC {
	return HLC{timestamp: time.Now().UTC().Truncate(time.Second), counter: 0, node: node}
}

// NewAt creates an HLC with an explicit timestamp and counter, useful for
// tests and for reconstructing an HLC read back from storage.
func NewAt(node nodeid.NodeId, timestamp time.Time, counter uint16) HLC {
	return HLC{timestamp: timestamp.UTC(), counter: counter, node: node}
}

// Zero is the sentinel HLC: the Unix epoch, counter zero, the minimum
// NodeId. It compares strictly less than any HLC produced by New.
func Zero() HLC {
	return HLC{timestamp: time.Unix(0, 0).UTC(), counter: 0, node: nodeid.Min}
}

// Timestamp returns the wall-clock component.
func (h HLC) Timestamp() time.Time { return h.timestamp }

// Counter returns the logical counter component.
func (h HLC) Counter() uint16 { return h.counter }

// Node returns the node id component.
func (h HLC) Node() nodeid.NodeId { return h.node }

// Compare returns -1, 0 or 1 following the total order
// (timestamp, counter, node).
func (h HLC) Compare(other HLC) int {
	if h.timestamp.Before(other.timestamp) {
		return -1
	}
	if h.timestamp.After(other.timestamp) {
		return 1
	}
	if h.counter != other.counter {
		if h.counter < other.counter {
			return -1
		}
		return 1
	}
	return h.node.Compare(other.node)
}

// Less reports whether h sorts strictly before other.
func (h HLC) Less(other HLC) bool { return h.Compare(other) < 0 }

// incrementCounter bumps the counter, saturating at math.MaxUint16 rather
// than wrapping. Wrapping would silently break monotonicity, which this
// clock's every caller depends on.
func incrementCounter(c uint16) uint16 {
	if c == math.MaxUint16 {
		return c
	}
	return c + 1
}

// Tick advances the clock past now, preserving monotonicity: if now is
// strictly after the current timestamp, the timestamp jumps forward and
// the counter resets; otherwise the timestamp is held and the counter
// increments. now is truncated to the second first. The clock this method
// is called on is left unmodified; the advanced value is returned.
func (h HLC) Tick(now time.Time) HLC {
	now = now.UTC().Truncate(time.Second)
	if now.After(h.timestamp) {
		return HLC{timestamp: now, counter: 0, node: h.node}
	}
	return HLC{timestamp: h.timestamp, counter: incrementCounter(h.counter), node: h.node}
}

// Receive merges an observation of another replica's clock into this one,
// producing a value strictly greater than both h and other (given a
// non-overflowing counter). now is the local wall clock at the moment of
// receipt, truncated to the second.
func (h HLC) Receive(other HLC, now time.Time) HLC {
	now = now.UTC().Truncate(time.Second)
	if now.After(h.timestamp) && now.After(other.timestamp) {
		return HLC{timestamp: now, counter: 0, node: h.node}
	}

	switch {
	case h.timestamp.Equal(other.timestamp):
		c := h.counter
		if other.counter > c {
			c = other.counter
		}
		return HLC{timestamp: h.timestamp, counter: incrementCounter(c), node: h.node}
	case h.timestamp.After(other.timestamp):
		return HLC{timestamp: h.timestamp, counter: incrementCounter(h.counter), node: h.node}
	default: // other.timestamp is after h.timestamp
		return HLC{timestamp: other.timestamp, counter: incrementCounter(other.counter), node: h.node}
	}
}

// String renders the clock for logs and error messages.
func (h HLC) String() string {
	return fmt.Sprintf("%s/%d/%d", h.timestamp.Format(time.RFC3339Nano), h.counter, h.node)
}
