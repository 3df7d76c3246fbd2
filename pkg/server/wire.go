package server

import (
	"fmt"
	"time"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
)

// wireClock is the JSON rendering of an hlc.HLC: the three components a
// replica needs to reconstruct ordering, nothing more.
type wireClock struct {
	Timestamp time.Time     `json:"timestamp"`
	Counter   uint16        `json:"counter"`
	Node      nodeid.NodeId `json:"node"`
}

// toWireClock truncates the timestamp to second resolution, matching
// spec.md's ISO-8601 wire requirement. Full precision is kept in memory;
// only the wire rendering is truncated.
func toWireClock(c hlc.HLC) wireClock {
	return wireClock{Timestamp: c.Timestamp().UTC().Truncate(time.Second), Counter: c.Counter(), Node: c.Node()}
}

func (w wireClock) toHLC() hlc.HLC {
	return hlc.NewAt(w.Node, w.Timestamp, w.Counter)
}

// wireTag is the JSON rendering of one tag register: the tag value (absent
// when untagged) plus the clock it was written at.
type wireTag struct {
	Tag   *string   `json:"tag"`
	Clock wireClock `json:"clock"`
}

// wireDocument is the full-state JSON body exchanged on push and pull: one
// minutes-per-ping register, the set of recorded pings, and a tag register
// per ping that has ever been tagged or untagged.
type wireDocument struct {
	MinutesPerPing      uint16             `json:"minutes_per_ping"`
	MinutesPerPingClock wireClock          `json:"minutes_per_ping_clock"`
	Pings               []time.Time        `json:"pings"`
	Tags                map[string]wireTag `json:"tags"`
}

// fromDocument renders a Document as its wire form.
func fromDocument(d document.Document) wireDocument {
	pings := make([]time.Time, 0, d.PingCount())
	for p := range d.Pings() {
		pings = append(pings, p)
	}

	tags := make(map[string]wireTag)
	for when, lww := range d.Tags() {
		tags[when.Format(time.RFC3339Nano)] = wireTag{
			Tag:   optionalToPtr(lww.Value()),
			Clock: toWireClock(lww.Clock()),
		}
	}

	return wireDocument{
		MinutesPerPing:      d.MinutesPerPing(),
		MinutesPerPingClock: toWireClock(d.MinutesPerPingClock()),
		Pings:               pings,
		Tags:                tags,
	}
}

// toDocument rebuilds a Document from its wire form by replaying every
// piece of state through MergePart, the same path the store uses to
// rebuild on pull.
func (w wireDocument) toDocument() (document.Document, error) {
	d := document.New()

	d = d.MergePart(document.MinutesPerPingPart(
		crdt.NewLWW(w.MinutesPerPing, w.MinutesPerPingClock.toHLC()),
	))

	for _, p := range w.Pings {
		d = d.MergePart(document.PingPart(p))
	}

	for key, t := range w.Tags {
		when, err := time.Parse(time.RFC3339Nano, key)
		if err != nil {
			return document.Document{}, fmt.Errorf("parsing tag key %q: %w", key, err)
		}
		d = d.MergePart(document.TagPart(when, crdt.NewLWW(ptrToOptional(t.Tag), t.Clock.toHLC())))
	}

	return d, nil
}

func optionalToPtr(o crdt.OptionalString) *string {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

func ptrToOptional(p *string) crdt.OptionalString {
	if p == nil {
		return crdt.None()
	}
	return crdt.Some(*p)
}
