// Package machine runs the slot machine: one Session per device, holding the
// current Round, the random stream and the debounce guard.
package machine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
)

// State of the reveal sequencer: Spinning(Revealed) or RoundFinished.
type State struct {
	Revealed int
	Finished bool
}

// Spinning returns the state with k columns already stopped.
func Spinning(k int) State { return State{Revealed: k} }

// RoundFinished is the state after the last column stopped.
var RoundFinished = State{Revealed: game.Cols, Finished: true}

func (s State) String() string {
	if s.Finished {
		return "RoundFinished"
	}
	return fmt.Sprintf("Spinning(%d)", s.Revealed)
}

// Round is one spin: the outcome is decided and the final grid built before
// the first column stops.
type Round struct {
	Number  int
	Outcome bool
	Draw    game.Draw

	// Final is what the round ends on; Displayed is what is on screen.
	// A stopped column always shows its final symbols.
	Final     game.Grid
	Displayed game.Grid
	Stopped   [game.Cols]bool

	// Next is the next column to stop.
	Next     int
	Finished bool
	Won      bool

	StartedAt, FinishedAt time.Time
}

func newRound(number int, outcome bool, draw game.Draw, now time.Time) *Round {
	return &Round{
		Number:    number,
		Outcome:   outcome,
		Draw:      draw,
		Final:     draw.Grid,
		StartedAt: now,
	}
}

// State returns where the round is in the reveal sequence.
func (r *Round) State() State {
	if r.Finished {
		return RoundFinished
	}
	return Spinning(r.Next)
}

// Reveal stops the next column: its final symbols are copied to the screen.
// After the last column the displayed grid is evaluated and the round is
// finished. It returns the stopped column, or -1 if the round was already
// finished.
func (r *Round) Reveal(d device.Display, now time.Time) int {
	if r.Finished {
		return -1
	}
	col := r.Next
	r.Displayed[col] = r.Final[col]
	for row := range game.Rows {
		d.PaintCell(col, row, r.Displayed[col][row])
	}
	r.Stopped[col] = true
	r.Next++
	if r.Next == game.Cols {
		r.Finished = true
		r.Won = game.Evaluate(&r.Displayed)
		r.FinishedAt = now
	}
	return col
}

// Animate repaints every column still spinning with random symbols.
func (r *Round) Animate(rng *rand.Rand, p game.Palette, d device.Display) {
	for col := range game.Cols {
		if r.Stopped[col] {
			continue
		}
		for row := range game.Rows {
			r.Displayed[col][row] = p.Draw(rng)
			d.PaintCell(col, row, r.Displayed[col][row])
		}
	}
}

// Banner is the text shown once the round is finished, empty before.
func (r *Round) Banner() string {
	switch {
	case !r.Finished:
		return ""
	case r.Won:
		return game.WinBanner
	default:
		return game.LoseBanner
	}
}
