// Package replica wraps a Document with the write clock and identity of a
// single device, and funnels every local mutation that writes a clock
// through a clock tick so the replica's clock always dominates everything
// it has written.
package replica

import (
	"context"
	"time"

	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
	"github.com/bytes-zone/beeps/pkg/scheduler"
)

// Replica is the local state of one device: who it is, what it knows, and
// the clock it writes with. All mutating methods acquire a one-at-a-time
// asynchronous lock, mirroring the single-writer concurrency model: there
// is no fine-grained locking inside Document because HLC tie-breaking
// already makes concurrent mutation from different devices safe at merge
// time, not at local-mutation time.
type Replica struct {
	clock hlc.HLC
	doc   document.Document

	sem chan struct{}
}

// New creates a replica identified by node, with an empty document and a
// fresh write clock.
func New(node nodeid.NodeId) *Replica {
	r := &Replica{
		clock: hlc.New(node),
		doc:   document.New(),
		sem:   make(chan struct{}, 1),
	}
	r.sem <- struct{}{}
	return r
}

func (r *Replica) lock(ctx context.Context) error {
	select {
	case <-r.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Replica) unlock() {
	r.sem <- struct{}{}
}

// nextClock ticks the write clock forward and returns the new value. Every
// mutation that needs a clock must go through here so the replica's clock
// stays strictly ahead of anything it writes into the document.
func (r *Replica) nextClock() hlc.HLC {
	r.clock = r.clock.Tick(time.Now())
	return r.clock
}

// State returns a snapshot of the current document.
func (r *Replica) State(ctx context.Context) (document.Document, error) {
	if err := r.lock(ctx); err != nil {
		return document.Document{}, err
	}
	defer r.unlock()
	return r.doc, nil
}

// Document is an alias for State, matching the naming used where the
// document is being read for syncing rather than for UI display.
func (r *Replica) Document(ctx context.Context) (document.Document, error) {
	return r.State(ctx)
}

// SetMinutesPerPing changes the average interval between pings.
func (r *Replica) SetMinutesPerPing(ctx context.Context, value uint16) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	clock := r.nextClock()
	r.doc = r.doc.SetMinutesPerPing(value, clock)
	return nil
}

// AddPing records a ping, likely in coordination with a Scheduler. Adding a
// ping does not need a fresh clock: a G-Set element carries no clock of its
// own.
func (r *Replica) AddPing(ctx context.Context, when time.Time) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	r.doc = r.doc.AddPing(when)
	return nil
}

// TagPing tags an existing ping. It returns false, making no change, if
// the ping does not exist.
func (r *Replica) TagPing(ctx context.Context, when time.Time, tag string) (bool, error) {
	if err := r.lock(ctx); err != nil {
		return false, err
	}
	defer r.unlock()

	clock := r.nextClock()
	doc, ok := r.doc.TagPing(when, tag, clock)
	r.doc = doc
	return ok, nil
}

// UntagPing clears the tag on an existing ping. It returns false, making no
// change, if the ping does not exist.
func (r *Replica) UntagPing(ctx context.Context, when time.Time) (bool, error) {
	if err := r.lock(ctx); err != nil {
		return false, err
	}
	defer r.unlock()

	clock := r.nextClock()
	doc, ok := r.doc.UntagPing(when, clock)
	r.doc = doc
	return ok, nil
}

// GetTag returns the current tag for a ping, if any.
func (r *Replica) GetTag(ctx context.Context, when time.Time) (string, bool, error) {
	if err := r.lock(ctx); err != nil {
		return "", false, err
	}
	defer r.unlock()

	tag, ok := r.doc.GetTag(when)
	return tag, ok, nil
}

// schedulePingsWithCutoff fills pings from the last recorded ping up to one
// strictly past cutoff, returning the newly inserted pings in generation
// order. The caller must already hold the lock.
func (r *Replica) schedulePingsWithCutoff(cutoff time.Time) []time.Time {
	var newPings []time.Time

	latest, ok := r.doc.LatestPing()
	if !ok {
		now := time.Now().UTC().Truncate(time.Second)
		r.doc = r.doc.AddPing(now)
		newPings = append(newPings, now)
		latest = now
	}

	if latest.After(cutoff) {
		return newPings
	}

	for next := range scheduler.Sequence(float64(r.doc.MinutesPerPing()), latest) {
		r.doc = r.doc.AddPing(next)
		newPings = append(newPings, next)

		if next.After(cutoff) {
			break
		}
	}

	return newPings
}

// SchedulePingsUntil fills pings from the last recorded ping up to one
// strictly past cutoff and returns the newly inserted pings in generation
// order. If the latest ping is already past cutoff, nothing new is
// scheduled and an empty slice is returned.
func (r *Replica) SchedulePingsUntil(ctx context.Context, cutoff time.Time) ([]time.Time, error) {
	if err := r.lock(ctx); err != nil {
		return nil, err
	}
	defer r.unlock()

	return r.schedulePingsWithCutoff(cutoff), nil
}

// SchedulePings fills pings up to one past the current time, returning the
// newly inserted pings. Going one past "now" rather than stopping exactly
// at it means the result also tells the caller when to next notify.
func (r *Replica) SchedulePings(ctx context.Context) ([]time.Time, error) {
	return r.SchedulePingsUntil(ctx, time.Now())
}

// Pings returns a snapshot of the current document, whose Pings method
// iterates every recorded ping.
func (r *Replica) Pings(ctx context.Context) (document.Document, error) {
	return r.State(ctx)
}

// Merge absorbs another document's state (for syncing), then fast-forwards
// the write clock past every clock in other so the Replica's clock keeps
// dominating the merged result.
func (r *Replica) Merge(ctx context.Context, other document.Document) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	r.doc = r.doc.Merge(other)

	now := time.Now()
	if r.clock.Less(other.MinutesPerPingClock()) {
		r.clock = r.clock.Receive(other.MinutesPerPingClock(), now)
	}
	for _, tag := range other.Tags() {
		if r.clock.Less(tag.Clock()) {
			r.clock = r.clock.Receive(tag.Clock(), now)
		}
	}
	return nil
}

// ReplaceDocument wholesale-replaces the document (for initial syncs).
func (r *Replica) ReplaceDocument(ctx context.Context, other document.Document) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	r.doc = other
	return nil
}

// Clock returns the replica's current write clock.
func (r *Replica) Clock(ctx context.Context) (hlc.HLC, error) {
	if err := r.lock(ctx); err != nil {
		return hlc.HLC{}, err
	}
	defer r.unlock()
	return r.clock, nil
}
