package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.WinChance)
	assert.Equal(t, 2.0, cfg.MotionThreshold)
	assert.Equal(t, 50*time.Millisecond, cfg.TickPeriod)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
	assert.True(t, cfg.TwoMatchLose)
	require.NoError(t, cfg.Validate())

	palette, err := cfg.Symbols()
	require.NoError(t, err)
	assert.Equal(t, 1<<16, palette.Size())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goslot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
win_chance: 0.3
debounce: 750ms
palette: ["f800", "#07e0", "0x001f"]
history_path: /tmp/history.db
`), 0o644))

	t.Setenv("GOSLOT_WIN_CHANCE", "0.6")
	t.Setenv("GOSLOT_SEED", "1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.WinChance, "environment overrides the file")
	assert.Equal(t, 750*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 50*time.Millisecond, cfg.TickPeriod, "defaults survive")
	assert.Equal(t, "/tmp/history.db", cfg.HistoryPath)
	assert.Equal(t, uint64(1234), cfg.Seed)

	palette, err := cfg.Symbols()
	require.NoError(t, err)
	require.Equal(t, 3, palette.Size())
	assert.Equal(t, game.Symbol(0x001f), palette.Symbol(0))

	opts, err := cfg.SessionOptions("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", opts.SessionID)
	assert.Equal(t, 0.6, opts.WinChance)

	seed, err := cfg.Seeded()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), seed)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"win chance above one": func(c *Config) { c.WinChance = 1.01 },
		"negative win chance":  func(c *Config) { c.WinChance = -0.1 },
		"zero tick":            func(c *Config) { c.TickPeriod = 0 },
		"zero threshold":       func(c *Config) { c.MotionThreshold = 0 },
		"single symbol":        func(c *Config) { c.Palette = []string{"f800", "F800"} },
		"bad symbol":           func(c *Config) { c.Palette = []string{"zz"} },
		"bad baud":             func(c *Config) { c.SerialBaud = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
