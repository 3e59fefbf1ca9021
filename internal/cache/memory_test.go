package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("t")

	_, err := m.Get(ctx, "k")
	require.True(t, IsNotFound(err))

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	require.NoError(t, m.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := m.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemory_TakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	require.NoError(t, m.Set(ctx, "tok", "acct", time.Minute))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := m.Take(ctx, "tok"); err == nil && v == "acct" {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)

	_, err := m.Take(ctx, "tok")
	assert.True(t, IsNotFound(err))
}
