package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclegc/pkg/memory"
)

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte("enabled: false\nthresholds: [256, 5, 5]\nlog_level: debug\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, [3]int{256, 5, 5}, cfg.Thresholds)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseDefaultsApply(t *testing.T) {
	cfg, err := Parse([]byte("log_level: warn\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, memory.DefaultThresholds, cfg.Thresholds)
}

func TestParseRejectsNonPositiveThreshold(t *testing.T) {
	_, err := Parse([]byte("thresholds: [0, 10, 10]\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("treshold: [700, 10, 10]\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownLogLevel(t *testing.T) {
	_, err := Parse([]byte("log_level: loud\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
}

func TestApply(t *testing.T) {
	e := memory.NewEngine()
	cfg := Config{Enabled: false, Thresholds: [3]int{64, 4, 4}}
	require.NoError(t, cfg.Apply(e))

	assert.False(t, e.IsEnabled())
	t0, t1, t2 := e.Thresholds()
	assert.Equal(t, []int{64, 4, 4}, []int{t0, t1, t2})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatcherAppliesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [700, 10, 10]\n"), 0o644))

	applied := make(chan Config, 4)
	w, err := NewWatcher(path, func(c Config) { applied <- c }, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("thresholds: [128, 3, 3]\n"), 0o644))

	select {
	case cfg := <-applied:
		assert.Equal(t, [3]int{128, 3, 3}, cfg.Thresholds)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not applied")
	}
}

func TestWatcherKeepsPreviousConfigOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [700, 10, 10]\n"), 0o644))

	applied := make(chan Config, 4)
	w, err := NewWatcher(path, func(c Config) { applied <- c }, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	// Invalid content must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [0, 0, 0]\n"), 0o644))

	// Then a valid write; only this one should arrive.
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [99, 9, 9]\n"), 0o644))

	assert.Eventually(t, func() bool {
		select {
		case cfg := <-applied:
			return cfg.Thresholds == [3]int{99, 9, 9}
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
