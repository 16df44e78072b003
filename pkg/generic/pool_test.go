package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := NewPool(func() *[]byte {
		b := make([]byte, 0, 8)
		return &b
	}, func(b *[]byte) *[]byte {
		*b = (*b)[:0]
		return b
	})

	buf := p.Get()
	*buf = append(*buf, 1, 2, 3)
	p.Put(buf)
	assert.Empty(t, *buf)

	again := p.Get()
	assert.Empty(t, *again)
	assert.GreaterOrEqual(t, cap(*again), 8)
}

func TestPoolWithoutReset(t *testing.T) {
	p := NewPool(func() int { return 7 }, nil)
	assert.Equal(t, 7, p.Get())
	p.Put(9)
}
