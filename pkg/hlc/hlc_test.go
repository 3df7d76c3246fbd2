package hlc_test

import (
	"testing"
	"time"

	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Unix(0, 0).UTC()

func TestZeroIsLessThanAnyFreshClock(t *testing.T) {
	fresh := hlc.New(nodeid.NodeId(1))
	assert.True(t, hlc.Zero().Less(fresh))
}

func TestCompareTimestampFirst(t *testing.T) {
	a := hlc.NewAt(nodeid.NodeId(1), epoch, 5)
	b := hlc.NewAt(nodeid.NodeId(1), epoch.Add(time.Second), 0)
	assert.Equal(t, -1, a.Compare(b))
}

func TestCompareCounterSecond(t *testing.T) {
	a := hlc.NewAt(nodeid.NodeId(1), epoch, 0)
	b := hlc.NewAt(nodeid.NodeId(1), epoch, 1)
	assert.Equal(t, -1, a.Compare(b))
}

func TestCompareNodeThird(t *testing.T) {
	a := hlc.NewAt(nodeid.NodeId(1), epoch, 0)
	b := hlc.NewAt(nodeid.NodeId(2), epoch, 0)
	assert.Equal(t, -1, a.Compare(b))
}

func TestTickAdvancesTimestampWhenNowIsAhead(t *testing.T) {
	h := hlc.NewAt(nodeid.NodeId(1), epoch, 3)
	next := h.Tick(epoch.Add(time.Minute))
	assert.True(t, next.Timestamp().Equal(epoch.Add(time.Minute)))
	assert.Equal(t, uint16(0), next.Counter())
}

func TestTickIncrementsCounterWhenNowIsInThePast(t *testing.T) {
	h := hlc.NewAt(nodeid.NodeId(1), epoch.Add(time.Minute), 3)
	next := h.Tick(epoch)
	assert.True(t, next.Timestamp().Equal(epoch.Add(time.Minute)))
	assert.Equal(t, uint16(4), next.Counter())
}

func TestReceiveAdoptsNowWhenAheadOfBoth(t *testing.T) {
	self := hlc.NewAt(nodeid.NodeId(1), epoch, 0)
	other := hlc.NewAt(nodeid.NodeId(2), epoch, 0)
	now := epoch.Add(time.Hour)

	got := self.Receive(other, now)
	assert.True(t, got.Timestamp().Equal(now))
	assert.Equal(t, uint16(0), got.Counter())
}

func TestReceiveTakesMaxCounterWhenTimestampsEqual(t *testing.T) {
	self := hlc.NewAt(nodeid.NodeId(1), epoch, 5)
	other := hlc.NewAt(nodeid.NodeId(2), epoch, 9)

	got := self.Receive(other, epoch)
	assert.True(t, got.Timestamp().Equal(epoch))
	assert.Equal(t, uint16(10), got.Counter())
}

func TestReceiveIncrementsOwnCounterWhenAheadOfOther(t *testing.T) {
	self := hlc.NewAt(nodeid.NodeId(1), epoch.Add(time.Minute), 2)
	other := hlc.NewAt(nodeid.NodeId(2), epoch, 9)

	got := self.Receive(other, epoch)
	assert.True(t, got.Timestamp().Equal(epoch.Add(time.Minute)))
	assert.Equal(t, uint16(3), got.Counter())
}

func TestReceiveAcceptsOtherTimestampWhenBehind(t *testing.T) {
	self := hlc.NewAt(nodeid.NodeId(1), epoch, 9)
	other := hlc.NewAt(nodeid.NodeId(2), epoch.Add(time.Minute), 2)

	got := self.Receive(other, epoch)
	assert.True(t, got.Timestamp().Equal(epoch.Add(time.Minute)))
	assert.Equal(t, uint16(3), got.Counter())
}

func TestCounterSaturatesInsteadOfWrapping(t *testing.T) {
	h := hlc.NewAt(nodeid.NodeId(1), epoch.Add(time.Minute), 0xFFFF)
	next := h.Tick(epoch)
	assert.Equal(t, uint16(0xFFFF), next.Counter())
}

// genHLC produces arbitrary but valid HLC values for property tests.
func genHLC() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64Range(0, 2_000_000_000),
		gen.UInt16Range(0, 65000),
		gen.UInt16(),
	).Map(func(values []interface{}) hlc.HLC {
		seconds := values[0].(int64)
		counter := values[1].(uint16)
		node := values[2].(uint16)
		return hlc.NewAt(nodeid.NodeId(node), time.Unix(seconds, 0).UTC(), counter)
	})
}

func TestHLCProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tick always strictly advances the clock", prop.ForAll(
		func(h hlc.HLC, deltaSeconds int64) bool {
			now := h.Timestamp().Add(time.Duration(deltaSeconds) * time.Second)
			return h.Tick(now).Compare(h) > 0
		},
		genHLC(),
		gen.Int64Range(-1000, 1000),
	))

	properties.Property("receive strictly dominates both inputs", prop.ForAll(
		func(self, other hlc.HLC, deltaSeconds int64) bool {
			now := self.Timestamp().Add(time.Duration(deltaSeconds) * time.Second)
			received := self.Receive(other, now)
			return received.Compare(self) > 0 && received.Compare(other) > 0
		},
		genHLC(),
		genHLC(),
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
