package device

import (
	"sync"

	"github.com/janpfeifer/GoSlot/internal/game"
)

// Paint is one recorded PaintCell call.
type Paint struct {
	Col, Row int
	Symbol   game.Symbol
}

// Recorder is an in-memory Display. It keeps what is currently shown and a
// log of paints since the last Reset.
type Recorder struct {
	mu      sync.Mutex
	screen  game.Grid
	paints  []Paint
	banners []string
	flushes int
}

// PaintCell implements Display.
func (r *Recorder) PaintCell(col, row int, s game.Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen[col][row] = s
	r.paints = append(r.paints, Paint{Col: col, Row: row, Symbol: s})
}

// Banner implements Display.
func (r *Recorder) Banner(text string, win bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banners = append(r.banners, text)
}

// Flush implements Flusher.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

// Screen returns what is currently shown.
func (r *Recorder) Screen() game.Grid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

// Paints returns the paints since the last Reset.
func (r *Recorder) Paints() []Paint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Paint(nil), r.paints...)
}

// Banners returns every banner shown since the last Reset.
func (r *Recorder) Banners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.banners...)
}

// Flushes returns the number of Flush calls since the last Reset.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Reset clears the logs, keeping the screen.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paints, r.banners, r.flushes = nil, nil, 0
}

// Script is a Motion replaying a fixed list of polls, one per tick. A zero
// Accel in the list stands for "nothing new".
type Script struct {
	mu    sync.Mutex
	polls []Accel
}

// NewScript returns a Script replaying polls.
func NewScript(polls ...Accel) *Script {
	return &Script{polls: polls}
}

// Push appends polls to the script.
func (s *Script) Push(polls ...Accel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = append(s.polls, polls...)
}

// Poll implements Motion.
func (s *Script) Poll() (Accel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.polls) == 0 {
		return Accel{}, false
	}
	a := s.polls[0]
	s.polls = s.polls[1:]
	return a, a != Accel{}
}
