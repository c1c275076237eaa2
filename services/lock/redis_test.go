package locksvc

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
)

func TestRedis_Lock(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, core.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), &core.Config{Env: "TEST"})
	logger.Enable(false)
	l := NewRedis(client, time.Second, logger)

	unlock, err := l.Lock(ctx, "class:redis")
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(tctx, "class:redis")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := l.Lock(ctx, "class:redis")
	assert.NoError(t, err)
	unlock2()

	t.Run("lease expires", func(t *testing.T) {
		short := NewRedis(client, 50*time.Millisecond, logger)
		_, err := short.Lock(ctx, "class:lease")
		require.NoError(t, err)

		tctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		unlock, err := short.Lock(tctx, "class:lease")
		assert.NoError(t, err)
		unlock()
	})
}
