package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderReduceClamps(t *testing.T) {
	o := Order{ID: "a", Side: 'B', Price: 10, Size: 100}

	assert.Equal(t, int64(40), o.Reduce(40))
	assert.Equal(t, int64(60), o.Size)
	assert.True(t, o.Active())

	assert.Equal(t, int64(60), o.Reduce(1000))
	assert.Equal(t, int64(0), o.Size)
	assert.False(t, o.Active())
}

func TestOrderReduceContract(t *testing.T) {
	t.Run("non-positive amount", func(t *testing.T) {
		o := Order{ID: "a", Size: 5}
		assert.Panics(t, func() { o.Reduce(0) })
	})
	t.Run("ghost", func(t *testing.T) {
		o := Order{ID: "a", Size: 0}
		assert.Panics(t, func() { o.Reduce(1) })
	})
}
