package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL_GetSet(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](time.Minute)

	_, ok := c.Get()
	assert.False(t, ok, "empty cache misses")

	c.Set("value")
	got, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestTTL_Expiry(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](10 * time.Millisecond)
	c.Set(7)

	_, ok := c.Get()
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get()
	assert.False(t, ok, "entry expires after the TTL")
}

func TestTTL_Invalidate(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](time.Minute)
	c.Set(1)
	c.Invalidate()

	_, ok := c.Get()
	assert.False(t, ok)
}

func TestTTL_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](0)
	c.Set(1)

	time.Sleep(10 * time.Millisecond)
	got, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestTTL_NilValueIsCached(t *testing.T) {
	t.Parallel()

	// A stored nil pointer is a valid cached value (e.g. "no metadata").
	c := NewTTL[*string](time.Minute)
	c.Set(nil)

	got, ok := c.Get()
	assert.True(t, ok)
	assert.Nil(t, got)
}
