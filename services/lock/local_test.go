package locksvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocal_Lock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	t.Run("serializes holders of the same key", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			holders int
			maxSeen int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "class:1")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				holders++
				if holders > maxSeen {
					maxSeen = holders
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				holders--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
		assert.Empty(t, l.locks)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		unlock1, err := l.Lock(ctx, "class:1")
		assert.NoError(t, err)
		defer unlock1()

		tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		unlock2, err := l.Lock(tctx, "class:2")
		assert.NoError(t, err)
		unlock2()
	})

	t.Run("gives up when the context is done", func(t *testing.T) {
		unlock, err := l.Lock(ctx, "class:3")
		assert.NoError(t, err)

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = l.Lock(tctx, "class:3")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock() // idempotent
		assert.Empty(t, l.locks)
	})
}
