package crdt_test

import (
	"testing"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestGSetInsertAndContains(t *testing.T) {
	s := crdt.NewGSet[int]()
	assert.False(t, s.Contains(1))

	s = s.Insert(1)
	assert.True(t, s.Contains(1))
	assert.Equal(t, 1, s.Len())
}

func genGSet() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 50)).Map(func(values []int) crdt.GSet[int] {
		return crdt.NewGSet(values...)
	})
}

func gsetEqual(a, b crdt.GSet[int]) bool {
	if a.Len() != b.Len() {
		return false
	}
	for e := range a.All() {
		if !b.Contains(e) {
			return false
		}
	}
	return true
}

func TestGSetMergeLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("idempotent", prop.ForAll(
		func(a crdt.GSet[int]) bool { return gsetEqual(a.Merge(a), a) },
		genGSet(),
	))

	properties.Property("commutative", prop.ForAll(
		func(a, b crdt.GSet[int]) bool { return gsetEqual(a.Merge(b), b.Merge(a)) },
		genGSet(), genGSet(),
	))

	properties.Property("associative", prop.ForAll(
		func(a, b, c crdt.GSet[int]) bool {
			return gsetEqual(a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
		},
		genGSet(), genGSet(), genGSet(),
	))

	properties.Property("merge equals merge of split parts", prop.ForAll(
		func(a, b crdt.GSet[int]) bool {
			merged := a
			for part := range b.Split() {
				merged = merged.MergePart(part)
			}
			return gsetEqual(merged, a.Merge(b))
		},
		genGSet(), genGSet(),
	))

	properties.TestingRun(t)
}
