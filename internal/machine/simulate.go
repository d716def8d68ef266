package machine

import (
	"context"
	"fmt"
	"time"

	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
)

// SimResult summarises a headless run.
type SimResult struct {
	Rounds     int
	Wins       int
	NearMisses int // Losing rounds with at least one line of exactly two.

	// Mismatches counts rounds whose evaluated result differs from the
	// decided outcome; it must stay zero.
	Mismatches int

	// Outcomes holds the decided outcome of every round, in order.
	Outcomes []bool
}

// WinRate is the fraction of rounds won.
func (r SimResult) WinRate() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Rounds)
}

// Simulate plays rounds full rounds with synthetic shakes, spaced exactly one
// debounce period apart, against an in-memory display.
func Simulate(ctx context.Context, opts Options, seed uint64, rounds int) (SimResult, error) {
	var res SimResult
	rec := &device.Recorder{}
	script := device.NewScript()
	observer := ObserverFunc(func(_ context.Context, r Result) {
		res.Rounds++
		res.Outcomes = append(res.Outcomes, r.Outcome)
		if r.Won {
			res.Wins++
		} else if len(game.NearMisses(&r.Final)) > 0 {
			res.NearMisses++
		}
		if r.Won != r.Outcome {
			res.Mismatches++
		}
	})
	s, err := NewSession(opts, game.NewRand(seed), script, rec, observer)
	if err != nil {
		return res, err
	}

	now := time.Unix(0, 0)
	step := max(opts.Debounce, opts.TickPeriod)
	for res.Rounds < rounds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		script.Push(device.Shake)
		if !s.Tick(now) {
			return res, fmt.Errorf("shake at %s was not consumed in state %s", now, s.State())
		}
		if s.State().Finished {
			// Keep the recorder from growing without bound.
			rec.Reset()
		}
		now = now.Add(step)
	}
	return res, nil
}
