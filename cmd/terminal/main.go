// Command terminal plays the slot machine in a terminal. Space or enter
// shakes; with -serial, a serial IMU shakes too.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/device/serialimu"
	"github.com/janpfeifer/GoSlot/internal/device/term"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/history"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"k8s.io/klog/v2"
)

var (
	flagConfig    = flag.String("config", "", "YAML configuration file; GOSLOT_* environment variables override it")
	flagSerial    = flag.String("serial", "", "Serial port of an IMU to shake with, e.g. /dev/ttyUSB0")
	flagWinChance = flag.Float64("win_chance", -1, "Probability in [0,1] that a round wins; negative keeps the configured value")
)

// eitherMotion polls several motion sources, first one wins.
type eitherMotion []device.Motion

func (m eitherMotion) Poll() (device.Accel, bool) {
	for _, src := range m {
		if a, ok := src.Poll(); ok {
			return a, true
		}
	}
	return device.Accel{}, false
}

func (m eitherMotion) Discard() {
	for _, src := range m {
		if d, ok := src.(device.Discarder); ok {
			d.Discard()
		}
	}
}

func main() {
	klog.InitFlags(nil)
	// The screen owns the terminal: logs go to a file or nowhere.
	flag.Set("logtostderr", "false")
	flag.Set("alsologtostderr", "false")
	flag.Parse()
	defer klog.Flush()

	if err := run(); err != nil && !errors.Is(err, term.ErrQuit) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}
	if *flagWinChance >= 0 {
		cfg.WinChance = *flagWinChance
	}
	if *flagSerial != "" {
		cfg.SerialPort = *flagSerial
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	opts, err := cfg.SessionOptions(uuid.NewString())
	if err != nil {
		return err
	}
	seed, err := cfg.Seeded()
	if err != nil {
		return err
	}
	klog.Infof("Session %s seeded with %d", opts.SessionID, seed)

	var observer machine.Observer
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		observer = store.Observer()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelCause := context.WithCancelCause(ctx)
	defer cancelCause(nil)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	defer screen.Fini()
	terminal := term.New(screen)

	motion := eitherMotion{terminal}
	if cfg.SerialPort != "" {
		imu, err := serialimu.Open(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			return err
		}
		defer imu.Close()
		motion = append(motion, imu)
		go func() {
			if err := imu.Monitor(ctx); err != nil && ctx.Err() == nil {
				klog.Errorf("Serial IMU stopped: %v", err)
			}
		}()
	}

	session, err := machine.NewSession(opts, game.NewRand(seed), motion, terminal, observer)
	if err != nil {
		return err
	}
	go func() {
		cancelCause(terminal.Events(ctx))
	}()
	err = session.Run(ctx)
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}
