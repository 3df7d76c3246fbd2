package document_test

import (
	"testing"
	"time"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(0, 0).UTC()

func clockAt(node uint16, seconds int64, counter uint16) hlc.HLC {
	return hlc.NewAt(nodeid.NodeId(node), time.Unix(seconds, 0).UTC(), counter)
}

func TestNewHasDefaultMinutesPerPing(t *testing.T) {
	doc := document.New()
	assert.Equal(t, uint16(document.DefaultMinutesPerPing), doc.MinutesPerPing())
}

func TestTagPingFailsIfPingDoesNotExist(t *testing.T) {
	doc := document.New()
	_, ok := doc.TagPing(epoch, "work", clockAt(1, 1, 0))
	assert.False(t, ok)
}

func TestTagPingSucceedsOnceAdded(t *testing.T) {
	doc := document.New().AddPing(epoch)
	doc, ok := doc.TagPing(epoch, "work", clockAt(1, 1, 0))
	require.True(t, ok)

	tag, ok := doc.GetTag(epoch)
	require.True(t, ok)
	assert.Equal(t, "work", tag)
}

func TestUntagPingRoundTrip(t *testing.T) {
	// S6 — Untag round-trip.
	doc := document.New().AddPing(epoch)

	doc, ok := doc.TagPing(epoch, "a", clockAt(1, 1, 0))
	require.True(t, ok)

	doc, ok = doc.UntagPing(epoch, clockAt(1, 2, 0))
	require.True(t, ok)
	_, ok = doc.GetTag(epoch)
	assert.False(t, ok)

	doc, ok = doc.TagPing(epoch, "b", clockAt(1, 3, 0))
	require.True(t, ok)
	tag, ok := doc.GetTag(epoch)
	require.True(t, ok)
	assert.Equal(t, "b", tag)
}

func TestLatestPingIsMax(t *testing.T) {
	doc := document.New()
	_, ok := doc.LatestPing()
	assert.False(t, ok)

	doc = doc.AddPing(epoch).AddPing(epoch.Add(time.Hour)).AddPing(epoch.Add(time.Minute))
	latest, ok := doc.LatestPing()
	require.True(t, ok)
	assert.True(t, latest.Equal(epoch.Add(time.Hour)))
}

func TestCrossDeviceConvergence(t *testing.T) {
	// S1 — Cross-device convergence.
	ping := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := document.New()
	a = a.SetMinutesPerPing(60, clockAt(1, 1, 0))
	a = a.AddPing(ping)
	var ok bool
	a, ok = a.TagPing(ping, "work", clockAt(1, 2, 0))
	require.True(t, ok)

	b := document.New().AddPing(ping)
	b, ok = b.TagPing(ping, "meeting", clockAt(2, 3, 0))
	require.True(t, ok)

	merged1 := a.Merge(b)
	merged2 := b.Merge(a)

	tag1, _ := merged1.GetTag(ping)
	tag2, _ := merged2.GetTag(ping)
	assert.Equal(t, "meeting", tag1)
	assert.Equal(t, "meeting", tag2)
}

func TestCrossFieldInvariantHoldsAfterOrdinaryUse(t *testing.T) {
	doc := document.New().AddPing(epoch)
	doc, _ = doc.TagPing(epoch, "work", clockAt(1, 1, 0))
	assert.True(t, doc.EveryTagHasACorrespondingPing())
}

func genDocument() gopter.Gen {
	return gen.SliceOfN(6, gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.Int64Range(0, 5),
		gen.AlphaString(),
	)).Map(func(ops [][]interface{}) document.Document {
		doc := document.New()
		var clock uint16
		for _, op := range ops {
			kind := op[0].(int)
			pingSeconds := op[1].(int64)
			tag := op[2].(string)
			ping := epoch.Add(time.Duration(pingSeconds) * time.Hour)
			clock++

			switch kind {
			case 0:
				doc = doc.SetMinutesPerPing(uint16(15+pingSeconds), clockAt(1, int64(clock), 0))
			case 1:
				doc = doc.AddPing(ping)
			case 2:
				doc, _ = doc.TagPing(ping, tag, clockAt(1, int64(clock), 0))
			default:
				doc, _ = doc.UntagPing(ping, clockAt(1, int64(clock), 0))
			}
		}
		return doc
	})
}

func documentEqual(a, b document.Document) bool {
	if a.MinutesPerPing() != b.MinutesPerPing() {
		return false
	}
	if a.PingCount() != b.PingCount() {
		return false
	}
	for p := range a.Pings() {
		if !b.HasPing(p) {
			return false
		}
	}
	countA, countB := 0, 0
	for range a.Tags() {
		countA++
	}
	for range b.Tags() {
		countB++
	}
	if countA != countB {
		return false
	}
	for ping, lww := range a.Tags() {
		otherLWW, ok := b.GetTagRegister(ping)
		if !ok {
			return false
		}
		if lww.Clock().Compare(otherLWW.Clock()) != 0 {
			return false
		}
		av, aok := lww.Value().Get()
		bv, bok := otherLWW.Value().Get()
		if aok != bok || av != bv {
			return false
		}
	}
	return true
}

func TestDocumentMergeLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("idempotent", prop.ForAll(
		func(a document.Document) bool { return documentEqual(a.Merge(a), a) },
		genDocument(),
	))

	properties.Property("commutative", prop.ForAll(
		func(a, b document.Document) bool { return documentEqual(a.Merge(b), b.Merge(a)) },
		genDocument(), genDocument(),
	))

	properties.Property("associative", prop.ForAll(
		func(a, b, c document.Document) bool {
			return documentEqual(a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
		},
		genDocument(), genDocument(), genDocument(),
	))

	properties.Property("split then merge_part from empty equals original", prop.ForAll(
		func(a document.Document) bool {
			rebuilt := document.New()
			for part := range a.Split() {
				rebuilt = rebuilt.MergePart(part)
			}
			return documentEqual(rebuilt, a)
		},
		genDocument(),
	))

	properties.Property("merge equals merge of split parts", prop.ForAll(
		func(a, b document.Document) bool {
			merged := a
			for part := range b.Split() {
				merged = merged.MergePart(part)
			}
			return documentEqual(merged, a.Merge(b))
		},
		genDocument(), genDocument(),
	))

	properties.TestingRun(t)
}
