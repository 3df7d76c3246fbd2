package nodeid_test

import (
	"testing"

	"github.com/bytes-zone/beeps/pkg/nodeid"
	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, nodeid.NodeId(1).Compare(nodeid.NodeId(2)))
	assert.Equal(t, 0, nodeid.NodeId(1).Compare(nodeid.NodeId(1)))
	assert.Equal(t, 1, nodeid.NodeId(2).Compare(nodeid.NodeId(1)))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, nodeid.NodeId(0), nodeid.Min)
	assert.True(t, nodeid.Max > nodeid.Min)
}

func TestRandomIsInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := nodeid.Random()
		assert.GreaterOrEqual(t, n, nodeid.Min)
	}
}
