package syncclient

import (
	"fmt"
	"time"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
)

// wireClock, wireTag and wireDocument mirror the server's JSON rendering of
// a Document exactly; the two sides never share a package, so the wire
// shape is the contract instead of a Go type.
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

type wireTag struct {
	Tag   *string   `json:"tag"`
	Clock wireClock `json:"clock"`
}

type wireDocument struct {
	MinutesPerPing      uint16             `json:"minutes_per_ping"`
	MinutesPerPingClock wireClock          `json:"minutes_per_ping_clock"`
	Pings               []time.Time        `json:"pings"`
	Tags                map[string]wireTag `json:"tags"`
}

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
