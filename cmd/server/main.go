package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/history"
	"github.com/janpfeifer/GoSlot/internal/server"
	"k8s.io/klog/v2"
)

var (
	flagConfig    = flag.String("config", "", "YAML configuration file; GOSLOT_* environment variables override it")
	flagAddr      = flag.String("addr", "", "Address to listen on (default: auto-port on localhost)")
	flagWinChance = flag.Float64("win_chance", -1, "Probability in [0,1] that a round wins; negative keeps the configured value")
	flagHistory   = flag.String("history", "", "SQLite file for the round history; overrides the configuration")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	if *flagAddr != "" {
		cfg.Addr = *flagAddr
	}
	if *flagWinChance >= 0 {
		cfg.WinChance = *flagWinChance
	}
	if *flagHistory != "" {
		cfg.HistoryPath = *flagHistory
	}
	if err := cfg.Validate(); err != nil {
		klog.Fatalf("Invalid configuration: %v", err)
	}

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			klog.Fatalf("Failed to open round history: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan *server.ServerState, 1)
	go func() {
		state := <-started
		fmt.Printf("GoSlot %s server listening on http://%s\n", game.Version, state.Address)
	}()

	if err := server.Run(ctx, cfg.Addr, server.NewServerState(cfg, store), started); err != nil {
		klog.Fatal(err)
	}
}
