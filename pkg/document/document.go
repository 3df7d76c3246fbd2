// Package document implements the composite CRDT that holds one user's
// replicated timeline: how often to ping, which pings have fired, and what
// each ping was tagged with.
package document

import (
	"iter"
	"time"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/bytes-zone/beeps/pkg/hlc"
)

// DefaultMinutesPerPing is the initial average interval between pings,
// written at HLC zero so that any real write from any replica wins.
const DefaultMinutesPerPing = 45

// pingKey normalizes a ping instant to the resolution pings and tags are
// keyed at: UTC, truncated to the second. Every caller constructing a
// pings/tags key must go through here, or two logically-identical pings
// recorded with different sub-second precision (a local nanosecond clock
// reading versus one rebuilt from a Postgres TIMESTAMPTZ column) would
// fail to coincide, breaking G-Set convergence across devices.
func pingKey(when time.Time) time.Time {
	return when.UTC().Truncate(time.Second)
}

// Document is the full replicated state for one user's timeline. The zero
// value is not valid; use New.
type Document struct {
	minutesPerPing crdt.LWW[uint16]
	pings          crdt.GSet[time.Time]
	tags           crdt.GMap[time.Time, crdt.LWW[crdt.OptionalString]]
}

// New builds an empty document: no pings, no tags, minutes-per-ping
// defaulted to DefaultMinutesPerPing at HLC zero.
func New() Document {
	return Document{
		minutesPerPing: crdt.NewLWW[uint16](DefaultMinutesPerPing, hlc.Zero()),
		pings:          crdt.NewGSet[time.Time](),
		tags:           crdt.NewGMap[time.Time, crdt.LWW[crdt.OptionalString]](),
	}
}

// MinutesPerPing returns the current average interval between pings.
func (d Document) MinutesPerPing() uint16 { return d.minutesPerPing.Value() }

// MinutesPerPingClock returns the clock the current minutes-per-ping value
// was written at; the Replica uses this to enforce clock dominance.
func (d Document) MinutesPerPingClock() hlc.HLC { return d.minutesPerPing.Clock() }

// SetMinutesPerPing writes a new average interval, subject to the usual
// LWW rule: only takes effect if clock is strictly newer than the current
// value's clock.
func (d Document) SetMinutesPerPing(value uint16, clock hlc.HLC) Document {
	d.minutesPerPing = d.minutesPerPing.Set(value, clock)
	return d
}

// AddPing records a ping at the given instant. Pings are never removed.
func (d Document) AddPing(when time.Time) Document {
	d.pings = d.pings.Insert(pingKey(when))
	return d
}

// HasPing reports whether when has been recorded as a ping.
func (d Document) HasPing(when time.Time) bool {
	return d.pings.Contains(pingKey(when))
}

// Pings iterates every recorded ping in unspecified order.
func (d Document) Pings() iter.Seq[time.Time] {
	return d.pings.All()
}

// PingCount returns the number of recorded pings.
func (d Document) PingCount() int { return d.pings.Len() }

// LatestPing returns the most recent ping, or the zero time and false if
// there are none.
func (d Document) LatestPing() (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for p := range d.pings.All() {
		if !found || p.After(latest) {
			latest = p
			found = true
		}
	}
	return latest, found
}

// TagPing attaches tag to an existing ping under clock. It returns false,
// making no change, if when has not been recorded as a ping: tagging does
// not implicitly create a ping.
func (d Document) TagPing(when time.Time, tag string, clock hlc.HLC) (Document, bool) {
	when = pingKey(when)
	if !d.pings.Contains(when) {
		return d, false
	}
	d.tags = d.tags.Upsert(when, crdt.NewLWW(crdt.Some(tag), clock))
	return d, true
}

// UntagPing clears the tag on an existing ping under clock, by writing an
// absent value rather than removing the entry. It returns false, making no
// change, if when has not been recorded as a ping.
func (d Document) UntagPing(when time.Time, clock hlc.HLC) (Document, bool) {
	when = pingKey(when)
	if !d.pings.Contains(when) {
		return d, false
	}
	d.tags = d.tags.Upsert(when, crdt.NewLWW(crdt.None(), clock))
	return d, true
}

// GetTag returns the current tag for a ping, if one is set and present.
func (d Document) GetTag(when time.Time) (string, bool) {
	lww, ok := d.tags.Get(pingKey(when))
	if !ok {
		return "", false
	}
	return lww.Value().Get()
}

// GetTagRegister returns the full tag register for a ping (value and the
// clock it was written at), if one has ever been written.
func (d Document) GetTagRegister(when time.Time) (crdt.LWW[crdt.OptionalString], bool) {
	return d.tags.Get(pingKey(when))
}

// TagClock returns the clock of the current tag value for a ping, if any
// tag (including an explicit untag) has ever been written.
func (d Document) TagClock(when time.Time) (hlc.HLC, bool) {
	lww, ok := d.tags.Get(pingKey(when))
	if !ok {
		return hlc.HLC{}, false
	}
	return lww.Clock(), true
}

// Tags iterates every (ping, tag-register) pair that has ever been
// written, including pings whose current tag is absent.
func (d Document) Tags() iter.Seq2[time.Time, crdt.LWW[crdt.OptionalString]] {
	return d.tags.All()
}

// Merge combines two documents, merging each of the three sub-CRDTs
// independently. Merge is commutative, associative and idempotent because
// each component merge is.
func (d Document) Merge(other Document) Document {
	return Document{
		minutesPerPing: d.minutesPerPing.Merge(other.minutesPerPing),
		pings:          d.pings.Merge(other.pings),
		tags:           d.tags.Merge(other.tags),
	}
}

// PartKind identifies which sub-CRDT a Part belongs to.
type PartKind int

const (
	// PartMinutesPerPing carries a replacement minutes-per-ping register.
	PartMinutesPerPing PartKind = iota
	// PartPing carries a single recorded ping instant.
	PartPing
	// PartTag carries a single tag register for one ping.
	PartTag
)

// Part is one minimal unit of a Document's state, as produced by Split and
// consumed by MergePart. It deliberately exposes no way to construct an
// arbitrary Part outside this package; the wire/storage layers build one
// by round-tripping through MinutesPerPingPart, PingPart or TagPart.
type Part struct {
	kind           PartKind
	minutesPerPing crdt.LWW[uint16]
	ping           time.Time
	tagPing        time.Time
	tag            crdt.LWW[crdt.OptionalString]
}

// Kind reports which sub-CRDT this part belongs to.
func (p Part) Kind() PartKind { return p.kind }

// MinutesPerPing returns the carried register. Only meaningful when
// Kind() == PartMinutesPerPing.
func (p Part) MinutesPerPing() crdt.LWW[uint16] { return p.minutesPerPing }

// Ping returns the carried instant. Only meaningful when
// Kind() == PartPing.
func (p Part) Ping() time.Time { return p.ping }

// TagPing returns the ping a tag part refers to. Only meaningful when
// Kind() == PartTag.
func (p Part) TagPing() time.Time { return p.tagPing }

// Tag returns the carried tag register. Only meaningful when
// Kind() == PartTag.
func (p Part) Tag() crdt.LWW[crdt.OptionalString] { return p.tag }

// MinutesPerPingPart builds a Part carrying a minutes-per-ping register.
func MinutesPerPingPart(value crdt.LWW[uint16]) Part {
	return Part{kind: PartMinutesPerPing, minutesPerPing: value}
}

// PingPart builds a Part carrying a single ping.
func PingPart(when time.Time) Part {
	return Part{kind: PartPing, ping: pingKey(when)}
}

// TagPart builds a Part carrying a single tag register.
func TagPart(when time.Time, tag crdt.LWW[crdt.OptionalString]) Part {
	return Part{kind: PartTag, tagPing: pingKey(when), tag: tag}
}

// Split yields one Part per piece of state: one for minutes-per-ping, one
// per recorded ping, and one per tag register.
func (d Document) Split() iter.Seq[Part] {
	return func(yield func(Part) bool) {
		if !yield(MinutesPerPingPart(d.minutesPerPing)) {
			return
		}
		for ping := range d.pings.All() {
			if !yield(PingPart(ping)) {
				return
			}
		}
		for ping, tag := range d.tags.All() {
			if !yield(TagPart(ping, tag)) {
				return
			}
		}
	}
}

// MergePart absorbs one part into the document, dispatching on its kind.
func (d Document) MergePart(part Part) Document {
	switch part.Kind() {
	case PartMinutesPerPing:
		d.minutesPerPing = d.minutesPerPing.MergePart(part.MinutesPerPing())
	case PartPing:
		d.pings = d.pings.MergePart(part.Ping())
	case PartTag:
		d.tags = d.tags.MergePart(crdt.KV[time.Time, crdt.LWW[crdt.OptionalString]]{
			Key:   part.TagPing(),
			Value: part.Tag(),
		})
	}
	return d
}

// EveryTagHasACorrespondingPing reports whether the cross-field invariant
// holds: every key in tags also appears in pings. Merge correctness never
// depends on this; it exists purely so tests can assert it.
func (d Document) EveryTagHasACorrespondingPing() bool {
	for ping := range d.tags.Keys() {
		if !d.pings.Contains(ping) {
			return false
		}
	}
	return true
}
