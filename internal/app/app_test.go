package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

func TestOpenStorage(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		store, closeStorage, err := openStorage(context.Background(), config.Storage{
			Driver: config.StorageDriverSQLite,
			SQLite: config.SQLite{Path: filepath.Join(t.TempDir(), "shortlink.db"), ReadConns: 2},
		})
		require.NoError(t, err)
		t.Cleanup(closeStorage)

		assert.NotNil(t, store)
	})

	t.Run("unreachable postgres", func(t *testing.T) {
		store, closeStorage, err := openStorage(context.Background(), config.Storage{
			Driver: config.StorageDriverPostgres,
			Postgres: config.Postgres{
				User:           "test",
				Password:       "test",
				Host:           "127.0.0.1",
				Port:           1,
				DB:             "test",
				SSLMode:        "disable",
				ConnectTimeout: 100 * time.Millisecond,
			},
		})

		assert.Error(t, err)
		assert.Nil(t, store)
		assert.Nil(t, closeStorage)
	})
}

func TestOpenCache(t *testing.T) {
	c, closeCache, err := openCache(context.Background(), config.Cache{
		Driver:          config.CacheDriverMemory,
		TTL:             time.Minute,
		CleanupInterval: time.Minute,
	}, logger.Nop())
	require.NoError(t, err)
	defer closeCache()

	assert.IsType(t, &cache.MemoryCache{}, c)
}

func TestRecorderConfig(t *testing.T) {
	in := config.Recorder{
		NodeID:          7,
		QueueSize:       10,
		Workers:         3,
		BatchSize:       5,
		FlushInterval:   time.Second,
		AttemptTimeout:  2 * time.Second,
		RetryInitial:    time.Millisecond,
		RetryMax:        time.Second,
		RetryMaxElapsed: time.Minute,
		ShutdownTimeout: 4 * time.Second,
	}

	out := recorderConfig(in)

	assert.Equal(t, int64(7), out.NodeID)
	assert.Equal(t, 10, out.QueueSize)
	assert.Equal(t, 3, out.Workers)
	assert.Equal(t, 5, out.BatchSize)
	assert.Equal(t, time.Second, out.FlushInterval)
	assert.Equal(t, 2*time.Second, out.AttemptTimeout)
	assert.Equal(t, time.Millisecond, out.RetryInitial)
	assert.Equal(t, time.Second, out.RetryMax)
	assert.Equal(t, time.Minute, out.RetryMaxElapsed)
	assert.Equal(t, 4*time.Second, out.ShutdownTimeout)
}
