package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderPacksDeltaAndType(t *testing.T) {
	t.Parallel()
	h := Header(3, Varint)
	assert.Equal(t, byte(3<<4|3), h)
}

func TestExplicitIDMarkerNotAUsableDelta(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint32(MaxInlineDelta), uint32(ExplicitIDMarker-1))
	assert.NotEqual(t, uint32(ExplicitIDMarker), uint32(MaxInlineDelta))
}

func TestHeaderRoundTripsNibbles(t *testing.T) {
	t.Parallel()
	for delta := uint32(0); delta <= MaxInlineDelta; delta++ {
		h := Header(delta, Bytes)
		gotDelta := uint32(h >> 4)
		gotType := Type(h & 0x0F)
		assert.Equal(t, delta, gotDelta)
		assert.Equal(t, Bytes, gotType)
	}
}
