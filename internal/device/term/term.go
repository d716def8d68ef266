// Package term runs the slot machine in a terminal: each cell is a block of
// true colour and the keyboard stands in for the motion sensor.
package term

import (
	"context"
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
)

// Layout of the slot window, in terminal cells.
const (
	CellWidth  = 6
	CellHeight = 3
	originX    = 2
	originY    = 1
)

// ErrQuit is returned by Events when the player pressed q or Esc.
var ErrQuit = errors.New("player quit")

var (
	winStyle  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	loseStyle = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	helpStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

const help = "space/enter: shake   q: quit"

// Terminal is a device.Display and device.Motion on a tcell screen.
type Terminal struct {
	screen tcell.Screen

	mu     sync.Mutex
	grid   game.Grid
	banner string
	win    bool

	keys device.Latest
}

// New wraps an initialized screen.
func New(screen tcell.Screen) *Terminal {
	t := &Terminal{screen: screen}
	t.mu.Lock()
	t.redraw()
	t.mu.Unlock()
	screen.Show()
	return t
}

// Color converts an RGB565 symbol to a terminal true colour.
func Color(s game.Symbol) tcell.Color {
	r, g, b := s.RGB()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// PaintCell implements device.Display.
func (t *Terminal) PaintCell(col, row int, s game.Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid[col][row] = s
	t.drawCell(col, row)
}

// Banner implements device.Display.
func (t *Terminal) Banner(text string, win bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banner, t.win = text, win
	t.drawBanner()
}

// Flush implements device.Flusher: changes are shown once per tick.
func (t *Terminal) Flush() {
	t.screen.Show()
}

// Poll implements device.Motion with keyboard shakes.
func (t *Terminal) Poll() (device.Accel, bool) {
	return t.keys.Poll()
}

// Discard implements device.Discarder.
func (t *Terminal) Discard() {
	t.keys.Discard()
}

func (t *Terminal) drawCell(col, row int) {
	style := tcell.StyleDefault.Background(Color(t.grid[col][row]))
	x0, y0 := originX+col*CellWidth, originY+row*CellHeight
	// One column and one row of gap between cells.
	for y := y0; y < y0+CellHeight-1; y++ {
		for x := x0; x < x0+CellWidth-1; x++ {
			t.screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

func bannerRow() int { return originY + game.Rows*CellHeight }

func (t *Terminal) drawBanner() {
	y := bannerRow()
	width := game.Cols * CellWidth
	style := loseStyle
	if t.win {
		style = winStyle
	}
	runes := []rune(t.banner)
	pad := (width - len(runes)) / 2
	for i := range width {
		r := ' '
		if j := i - pad; j >= 0 && j < len(runes) {
			r = runes[j]
		}
		t.screen.SetContent(originX+i, y, r, nil, style)
	}
}

func (t *Terminal) drawHelp() {
	for i, r := range help {
		t.screen.SetContent(originX+i, bannerRow()+2, r, nil, helpStyle)
	}
}

func (t *Terminal) redraw() {
	t.screen.Clear()
	for col := range game.Cols {
		for row := range game.Rows {
			t.drawCell(col, row)
		}
	}
	t.drawBanner()
	t.drawHelp()
}

// Events handles keyboard and resize events until ctx is done or the player
// quits. Space and enter are shakes.
func (t *Terminal) Events(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			// Screen finalized.
			return nil
		case *tcell.EventInterrupt:
			if err := ctx.Err(); err != nil {
				return err
			}
		case *tcell.EventResize:
			t.mu.Lock()
			t.redraw()
			t.mu.Unlock()
			t.screen.Sync()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				return ErrQuit
			case ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
				t.keys.Put(device.Shake)
			}
		}
	}
}
