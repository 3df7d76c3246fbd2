// Package crdt provides the small conflict-free replicated data types that
// compose into the document model: a last-writer-wins register, a
// grow-only set, and a grow-only map.
package crdt

import "github.com/bytes-zone/beeps/pkg/hlc"

// LWW is a last-writer-wins register: a value paired with the clock that
// wrote it. The zero value is not meaningful; use NewLWW.
type LWW[T any] struct {
	value T
	clock hlc.HLC
}

// NewLWW pairs value with clock.
func NewLWW[T any](value T, clock hlc.HLC) LWW[T] {
	return LWW[T]{value: value, clock: clock}
}

// Value returns the currently-held value.
func (l LWW[T]) Value() T { return l.value }

// Clock returns the clock the current value was written at.
func (l LWW[T]) Clock() hlc.HLC { return l.clock }

// Set writes value under clock, but only if clock is strictly greater
// than the register's current clock. Writes with an equal or older clock
// are silently dropped, matching the CRDT merge rule.
func (l LWW[T]) Set(value T, clock hlc.HLC) LWW[T] {
	if clock.Compare(l.clock) > 0 {
		return LWW[T]{value: value, clock: clock}
	}
	return l
}

// Merge returns the operand with the strictly greater clock. Ties keep the
// left (receiver) operand; this is safe because HLC ties are only possible
// for identical clocks (timestamp, counter and node all equal), in which
// case either operand carries the same causal information.
func (l LWW[T]) Merge(other LWW[T]) LWW[T] {
	if other.clock.Compare(l.clock) > 0 {
		return other
	}
	return l
}

// Split yields the single part that reconstructs this register.
func (l LWW[T]) Split() []LWW[T] {
	return []LWW[T]{l}
}

// MergePart absorbs one part, which for an LWW register is simply another
// full value: part becomes the merge input for Merge.
func (l LWW[T]) MergePart(part LWW[T]) LWW[T] {
	return l.Merge(part)
}
