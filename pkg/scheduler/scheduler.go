// Package scheduler derives a deterministic, reproducible sequence of
// future ping instants from a shared rate and a starting instant, so every
// device lands on the same schedule without coordinating over the
// network.
package scheduler

import (
	"iter"
	"math"
	"time"
)

// streamConstant is the fixed PCG32 stream selector every device uses, so
// that two replicas seeded from the same previous ping produce the same
// next ping.
const streamConstant = 0xa02bdbf7bb3c0a7

// Next derives the next ping instant after lastPing, given the average
// number of minutes between pings. The generator is reseeded from
// lastPing's Unix-seconds timestamp on every call, which is what makes the
// sequence reproducible from any point rather than only from the start:
// two replicas that agree on (averageMinutesBetweenPings, lastPing) always
// agree on Next, regardless of what produced lastPing.
func Next(averageMinutesBetweenPings float64, lastPing time.Time) time.Time {
	// int64 -> uint64 cast; underflow for pre-epoch instants is accepted,
	// not guarded against, because only the resulting bit pattern needs to
	// be deterministic, not meaningful as a count.
	seed := uint64(lastPing.Unix())

	rng := newPCG32(seed, streamConstant)
	u := rng.uniform01()

	averagePingsPerMinute := 1.0 / averageMinutesBetweenPings
	deltaMinutes := -math.Log(u) / averagePingsPerMinute
	deltaSeconds := int64(math.Ceil(deltaMinutes * 60))

	return lastPing.Add(time.Duration(deltaSeconds) * time.Second)
}

// Sequence produces the lazy, infinite sequence of ping instants starting
// after lastPing. Callers iterate with their own termination condition,
// for example range-over-func with a break once an instant passes a
// cutoff.
func Sequence(averageMinutesBetweenPings float64, lastPing time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		previous := lastPing
		for {
			next := Next(averageMinutesBetweenPings, previous)
			if !yield(next) {
				return
			}
			previous = next
		}
	}
}
