package syncutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "user-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	var m KeyedMutex
	unlock, err := m.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	again, err := m.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	again()
}

func TestKeyedMutexKeysDoNotContend(t *testing.T) {
	m := NewKeyedMutex()
	held, err := m.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		unlock, err := m.Lock(ctx, fmt.Sprintf("user-%d", i+2))
		cancel()
		require.NoError(t, err, "key %d waited on an unrelated holder", i+2)
		unlock()
	}
	assert.Equal(t, 1, m.size())

	held()
	assert.Zero(t, m.size())
}

func TestKeyedMutexDropsAbandonedWaiters(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, context.Canceled)

	unlock()
	assert.Zero(t, m.size())
}
