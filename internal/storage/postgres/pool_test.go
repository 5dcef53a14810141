package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/grimoire/internal/testutil"
)

func TestPool_Health(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	require.NoError(t, pc.Pool.Health(context.Background(), 5*time.Second))
	assert.NotNil(t, pc.Pool.DB())
	assert.NotEmpty(t, pc.DSN())
}

func TestPool_WatchStopsOnCancel(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pc.Pool.Watch(ctx, 10*time.Millisecond, zaptest.NewLogger(t))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}

	assert.Panics(t, func() {
		_ = pc.Pool.Watch(context.Background(), 0, zaptest.NewLogger(t))
	})
}
