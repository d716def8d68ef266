package machine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
	"k8s.io/klog/v2"
)

// Defaults of the handheld.
const (
	DefaultMotionThreshold = 2.0
	DefaultTickPeriod      = 50 * time.Millisecond
	DefaultDebounce        = 500 * time.Millisecond
)

// Options configure a Session. They are fixed for its lifetime.
type Options struct {
	SessionID string

	// WinChance is the probability, in [0,1], that a round is a win.
	WinChance float64

	// MotionThreshold is the per-axis magnitude (in g) a shake must exceed.
	MotionThreshold float64

	TickPeriod time.Duration

	// Debounce is the quiet period after a transition; shakes inside it are dropped.
	Debounce time.Duration

	// TwoMatchLose seeds losing grids with a near miss.
	TwoMatchLose bool

	Palette game.Palette

	// OnTransition, if set, is called after every transition with the new
	// view of the round, outside the session lock.
	OnTransition func(game.RoundView)
}

// DefaultOptions returns the options of the M5Stack handheld.
func DefaultOptions() Options {
	return Options{
		MotionThreshold: DefaultMotionThreshold,
		TickPeriod:      DefaultTickPeriod,
		Debounce:        DefaultDebounce,
		TwoMatchLose:    true,
	}
}

// Validate checks the ranges of the options.
func (o Options) Validate() error {
	var errs []error
	if o.WinChance < 0 || o.WinChance > 1 {
		errs = append(errs, fmt.Errorf("win chance %g outside [0,1]", o.WinChance))
	}
	if o.MotionThreshold <= 0 {
		errs = append(errs, fmt.Errorf("motion threshold must be positive, got %g", o.MotionThreshold))
	}
	if o.TickPeriod <= 0 {
		errs = append(errs, fmt.Errorf("tick period must be positive, got %s", o.TickPeriod))
	}
	if o.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %s", o.Debounce))
	}
	return errors.Join(errs...)
}

// Result describes a finished round.
type Result struct {
	SessionID string
	Number    int
	Outcome   bool
	Won       bool
	Pattern   string
	Final     game.Grid
	StartedAt time.Time
	EndedAt   time.Time
}

// Observer is told about every finished round. It is called from Tick while
// the session is locked, so it must not call back into the Session.
type Observer interface {
	RoundFinished(ctx context.Context, r Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Result)

func (f ObserverFunc) RoundFinished(ctx context.Context, r Result) { f(ctx, r) }

// Session is one running slot machine. All game mutation happens in Tick;
// Snapshot may be called from other goroutines.
type Session struct {
	opts     Options
	rng      *rand.Rand
	gen      *game.Generator
	motion   device.Motion
	display  device.Display
	observer Observer

	mu         sync.Mutex
	round      *Round
	quietUntil time.Time
	ctx        context.Context
}

// NewSession creates a session and its first round. rng is the session's
// only random stream; it is never reseeded.
func NewSession(opts Options, rng *rand.Rand, motion device.Motion, display device.Display, observer Observer) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session options: %w", err)
	}
	s := &Session{
		opts:     opts,
		rng:      rng,
		gen:      game.NewGenerator(rng, opts.Palette, opts.TwoMatchLose),
		motion:   motion,
		display:  display,
		observer: observer,
		ctx:      context.Background(),
	}
	s.startRound(time.Now(), 1)
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.opts.SessionID }

func (s *Session) startRound(now time.Time, number int) {
	outcome := game.Decide(s.rng, s.opts.WinChance)
	draw := s.gen.Draw(outcome)
	s.round = newRound(number, outcome, draw, now)
	klog.V(1).Infof("Session %s: round %d started, final grid %s", s.opts.SessionID, number, draw.Grid)
}

// State returns the reveal state of the current round.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round.State()
}

// Round returns a copy of the current round.
func (s *Session) Round() Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.round
}

// Snapshot returns the view of the current round sent to clients.
func (s *Session) Snapshot() game.RoundView {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.round
	phase := game.PhaseSpinning
	if r.Finished {
		phase = game.PhaseFinished
	}
	return game.RoundView{
		SessionID: s.opts.SessionID,
		Number:    r.Number,
		Phase:     phase,
		Next:      r.Next,
		Stopped:   r.Stopped,
		Displayed: r.Displayed,
		Won:       r.Won,
		Banner:    r.Banner(),
	}
}

// Tick runs one game tick at time now: poll the motion sensor, run one
// transition on a qualifying shake outside the quiet period, then animate the
// spinning columns. Batching displays are flushed after the session is
// unlocked. It reports whether a transition happened.
func (s *Session) Tick(now time.Time) bool {
	moved := s.tick(now)
	if f, ok := s.display.(device.Flusher); ok {
		f.Flush()
	}
	if moved && s.opts.OnTransition != nil {
		s.opts.OnTransition(s.Snapshot())
	}
	return moved
}

func (s *Session) tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := false
	if a, ok := s.motion.Poll(); ok && a.Exceeds(s.opts.MotionThreshold) {
		if now.Before(s.quietUntil) {
			klog.V(1).Infof("Session %s: shake %+v dropped, quiet for %s", s.opts.SessionID, a, s.quietUntil.Sub(now))
		} else {
			s.advance(now)
			s.quietUntil = now.Add(s.opts.Debounce)
			moved = true
		}
	}

	s.round.Animate(s.rng, s.opts.Palette, s.display)
	return moved
}

func (s *Session) advance(now time.Time) {
	r := s.round
	if r.Finished {
		s.startRound(now, r.Number+1)
		s.display.Banner("", false)
		return
	}

	col := r.Reveal(s.display, now)
	klog.V(1).Infof("Session %s: round %d column %d stopped", s.opts.SessionID, r.Number, col)
	if !r.Finished {
		return
	}

	s.display.Banner(r.Banner(), r.Won)
	klog.V(1).Infof("Session %s: round %d finished, decided=%t won=%t grid=%s", s.opts.SessionID, r.Number, r.Outcome, r.Won, r.Displayed)
	if r.Won != r.Outcome {
		klog.Errorf("Session %s: round %d evaluated win=%t but decided %t", s.opts.SessionID, r.Number, r.Won, r.Outcome)
	}
	if s.observer != nil {
		pattern := ""
		if r.Draw.HasPattern {
			pattern = r.Draw.Pattern.String()
		}
		s.observer.RoundFinished(s.ctx, Result{
			SessionID: s.opts.SessionID,
			Number:    r.Number,
			Outcome:   r.Outcome,
			Won:       r.Won,
			Pattern:   pattern,
			Final:     r.Final,
			StartedAt: r.StartedAt,
			EndedAt:   r.FinishedAt,
		})
	}
}

// Run ticks until ctx is cancelled, waiting TickPeriod between ticks and an
// extra Debounce after every transition.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	klog.Infof("Session %s: running (win chance %.2f, tick %s, debounce %s)", s.opts.SessionID, s.opts.WinChance, s.opts.TickPeriod, s.opts.Debounce)
	for {
		if s.Tick(time.Now()) {
			if err := wait(ctx, s.opts.Debounce); err != nil {
				return err
			}
			// Shakes during the quiet period are dropped, not replayed.
			if d, ok := s.motion.(device.Discarder); ok {
				d.Discard()
			}
		}
		if err := wait(ctx, s.opts.TickPeriod); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
