package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_StartStopsBeforeClose(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "anima.db")
	cfg.Engine.TickInterval = time.Millisecond
	cfg.Logging.Level = "error"

	rt, err := newRuntime(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = rt.registry.Get(ctx, "ada")
	require.NoError(t, err)

	wait := rt.start(ctx, "127.0.0.1:0")
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background loops still running after cancel")
	}

	rt.Close()
	ids, err := rt.store.Entities()
	assert.Error(t, err, "store is closed")
	assert.Empty(t, ids)
}
