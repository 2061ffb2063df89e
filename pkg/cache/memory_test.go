package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, clockwork.NewFakeClock())

	data, err := c.Get(ctx, "subscription:status:a")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, "subscription:status:a", []byte(`{"plan":"basic"}`)))
	data, err = c.Get(ctx, "subscription:status:a")
	require.NoError(t, err)
	assert.Equal(t, `{"plan":"basic"}`, string(data))

	require.NoError(t, c.Delete(ctx, "subscription:status:a"))
	data, _ = c.Get(ctx, "subscription:status:a")
	assert.Nil(t, data)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(time.Minute, clock)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	clock.Advance(59 * time.Second)
	data, _ := c.Get(ctx, "k")
	assert.Equal(t, "v", string(data))

	clock.Advance(time.Second)
	data, _ = c.Get(ctx, "k")
	assert.Nil(t, data)
}

func TestMemoryCache_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, clockwork.NewFakeClock())

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	require.NoError(t, c.Flush(ctx))

	a, _ := c.Get(ctx, "a")
	b, _ := c.Get(ctx, "b")
	assert.Nil(t, a)
	assert.Nil(t, b)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, clockwork.NewFakeClock())

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'x'

	data, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(data))
}
