// Package device describes the handheld the slot machine runs on: a motion
// sensor and a 3x3 colour display. Concrete devices live in subpackages and
// in the websocket server.
package device

import (
	"math"
	"sync"

	"github.com/janpfeifer/GoSlot/internal/game"
)

// Accel is one acceleration sample, in g per axis.
type Accel struct {
	X, Y, Z float64
}

// Exceeds reports whether any axis magnitude is above threshold.
func (a Accel) Exceeds(threshold float64) bool {
	return math.Abs(a.X) > threshold || math.Abs(a.Y) > threshold || math.Abs(a.Z) > threshold
}

// Motion is polled once per tick. ok is false when the sensor had nothing new.
type Motion interface {
	Poll() (a Accel, ok bool)
}

// Display draws the slot window.
type Display interface {
	// PaintCell renders one cell immediately.
	PaintCell(col, row int, s game.Symbol)
	// Banner shows text across the whole display, e.g. game.WinBanner.
	Banner(text string, win bool)
}

// Flusher is implemented by displays that batch paints; Flush is called at
// the end of every tick.
type Flusher interface {
	Flush()
}

// Discarder is implemented by motion sources that hold on to samples; the
// session loop discards them after its quiet period.
type Discarder interface {
	Discard()
}

// Latest is a one-slot mailbox for push-style sensors: Put overwrites any
// sample not yet polled, Poll consumes it. Samples arriving while the game is
// not polling are dropped, never queued.
type Latest struct {
	mu    sync.Mutex
	accel Accel
	full  bool
}

// Put stores a sample, replacing any unread one.
func (l *Latest) Put(a Accel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accel, l.full = a, true
}

// Poll implements Motion.
func (l *Latest) Poll() (Accel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return Accel{}, false
	}
	l.full = false
	return l.accel, true
}

// Discard drops any unread sample.
func (l *Latest) Discard() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.full = false
}

// Still is a Motion that never reports anything.
type Still struct{}

func (Still) Poll() (Accel, bool) { return Accel{}, false }

// Shake is a sample well above the default threshold, used for synthetic
// shakes (keyboard, buttons, simulations).
var Shake = Accel{Z: 3}
