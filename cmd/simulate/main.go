// Command simulate plays many rounds headless and reports the observed win
// rate, checking that every round ended as decided.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

var (
	flagConfig    = flag.String("config", "", "YAML configuration file; GOSLOT_* environment variables override it")
	flagRounds    = flag.Int("rounds", 100_000, "Number of rounds to play")
	flagBatches   = flag.Int("batches", 20, "Rounds are split in this many batches for the spread of the win rate")
	flagWinChance = flag.Float64("win_chance", -1, "Probability in [0,1] that a round wins; negative keeps the configured value")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	if *flagWinChance >= 0 {
		cfg.WinChance = *flagWinChance
	}
	if *flagRounds <= 0 || *flagBatches <= 0 || *flagBatches > *flagRounds {
		klog.Fatalf("Need 0 < batches <= rounds, got %d batches of %d rounds", *flagBatches, *flagRounds)
	}
	opts, err := cfg.SessionOptions("simulation")
	if err != nil {
		klog.Fatalf("Invalid configuration: %v", err)
	}
	seed, err := cfg.Seeded()
	if err != nil {
		klog.Fatalf("Failed to seed: %v", err)
	}

	res, err := machine.Simulate(context.Background(), opts, seed, *flagRounds)
	if err != nil {
		klog.Fatalf("Simulation failed: %v", err)
	}

	rates := BatchRates(res.Outcomes, *flagBatches)
	mean, std := stat.MeanStdDev(rates, nil)
	losses := res.Rounds - res.Wins

	fmt.Printf("seed:          %d\n", seed)
	fmt.Printf("rounds:        %d\n", res.Rounds)
	fmt.Printf("win chance:    %.4f\n", opts.WinChance)
	fmt.Printf("win rate:      %.4f (batches of %d: mean %.4f, stddev %.4f)\n", res.WinRate(), res.Rounds / *flagBatches, mean, std)
	fmt.Printf("expected std:  %.4f\n", math.Sqrt(opts.WinChance*(1-opts.WinChance)/float64(res.Rounds / *flagBatches)))
	if losses > 0 {
		fmt.Printf("near misses:   %d of %d losses (%.1f%%)\n", res.NearMisses, losses, 100*float64(res.NearMisses)/float64(losses))
	}
	fmt.Printf("mismatches:    %d\n", res.Mismatches)
	if res.Mismatches > 0 {
		os.Exit(1)
	}
}

// BatchRates splits outcomes in n equal batches, dropping the remainder, and
// returns the win rate of each.
func BatchRates(outcomes []bool, n int) []float64 {
	size := len(outcomes) / n
	rates := make([]float64, n)
	for i := range rates {
		wins := 0
		for _, won := range outcomes[i*size : (i+1)*size] {
			if won {
				wins++
			}
		}
		rates[i] = float64(wins) / float64(size)
	}
	return rates
}
