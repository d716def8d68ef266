// Package config loads GoSlot settings: defaults, then an optional YAML file,
// then GOSLOT_* environment variables. Binaries apply their flags last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GOSLOT_"

// Config holds every setting of the slot machine and its front-ends.
type Config struct {
	WinChance       float64       `yaml:"win_chance" env:"WIN_CHANCE"`
	MotionThreshold float64       `yaml:"motion_threshold" env:"MOTION_THRESHOLD"`
	TickPeriod      time.Duration `yaml:"tick_period" env:"TICK_PERIOD"`
	Debounce        time.Duration `yaml:"debounce" env:"DEBOUNCE"`
	TwoMatchLose    bool          `yaml:"two_match_lose" env:"TWO_MATCH_LOSE"`

	// Seed of the random stream; 0 picks one from crypto/rand.
	Seed uint64 `yaml:"seed" env:"SEED"`

	// Palette lists the symbols as hex RGB565 values ("f800,07e0,001f").
	// Empty means the full 16-bit space.
	Palette []string `yaml:"palette" env:"PALETTE" envSeparator:","`

	// HistoryPath is the SQLite round history; empty disables it.
	HistoryPath string `yaml:"history_path" env:"HISTORY_PATH"`

	Addr       string `yaml:"addr" env:"ADDR"`
	SerialPort string `yaml:"serial_port" env:"SERIAL_PORT"`
	SerialBaud int    `yaml:"serial_baud" env:"SERIAL_BAUD"`
}

// Default returns the settings of the M5Stack handheld.
func Default() Config {
	return Config{
		WinChance:       0,
		MotionThreshold: machine.DefaultMotionThreshold,
		TickPeriod:      machine.DefaultTickPeriod,
		Debounce:        machine.DefaultDebounce,
		TwoMatchLose:    true,
		SerialBaud:      115200,
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Symbols parses the configured palette.
func (c Config) Symbols() (game.Palette, error) {
	symbols := make([]game.Symbol, 0, len(c.Palette))
	for _, s := range c.Palette {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
		if err != nil {
			return game.Palette{}, fmt.Errorf("palette symbol %q: %w", s, err)
		}
		symbols = append(symbols, game.Symbol(v))
	}
	return game.NewPalette(symbols)
}

// SessionOptions converts the game settings to machine.Options.
func (c Config) SessionOptions(sessionID string) (machine.Options, error) {
	palette, err := c.Symbols()
	if err != nil {
		return machine.Options{}, err
	}
	opts := machine.Options{
		SessionID:       sessionID,
		WinChance:       c.WinChance,
		MotionThreshold: c.MotionThreshold,
		TickPeriod:      c.TickPeriod,
		Debounce:        c.Debounce,
		TwoMatchLose:    c.TwoMatchLose,
		Palette:         palette,
	}
	return opts, opts.Validate()
}

// Validate checks every setting.
func (c Config) Validate() error {
	_, err := c.SessionOptions("")
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if c.SerialBaud <= 0 {
		errs = append(errs, fmt.Errorf("serial baud rate must be positive, got %d", c.SerialBaud))
	}
	return errors.Join(errs...)
}

// Seeded returns the configured seed, or a fresh one from crypto/rand.
func (c Config) Seeded() (uint64, error) {
	if c.Seed != 0 {
		return c.Seed, nil
	}
	return game.NewSeed()
}
