package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lesson_bundle_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
server:
  mode: debug
database:
  driver: sqlite
ai:
  model: %s
`

func writeConfig(t *testing.T, dir, model string) {
	t.Helper()
	body := []byte(fmt.Sprintf(baseConfig, model))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644))
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "model-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, dir, 20*time.Millisecond, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// let the watcher register
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "model-b")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "model-b", cfg.AI.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchConfig_MissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Millisecond, func(*config.Config) {})
	assert.Error(t, err)
}
