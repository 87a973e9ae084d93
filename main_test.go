package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seo-optimizer/metachecker/config"
)

func TestNewRateLimiter_Memory(t *testing.T) {
	cfg := config.Default()

	rl, closeStore, err := newRateLimiter(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, rl)
	closeStore()
}

func TestNewRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()

	rl, closeStore, err := newRateLimiter(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, rl)
	closeStore()
}

func TestNewRateLimiter_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Redis.Addr = addr

	rl, _, err := newRateLimiter(cfg, zaptest.NewLogger(t))
	assert.Nil(t, rl)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
