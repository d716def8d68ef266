package game

import (
	"math/rand/v2"

	"k8s.io/klog/v2"
)

const (
	// maxFixPasses bounds the rescans of the fix-up; a pass rarely redraws
	// anything with a large palette.
	maxFixPasses = 16

	// maxNearMissAttempts bounds the regeneration of a near-miss grid whose
	// seeded pair was broken by the fix-up.
	maxNearMissAttempts = 8
)

// Draw is a generated final grid and how it was built.
type Draw struct {
	Grid Grid
	Win  bool

	// Pattern is the winning line for a win, or the line seeded with two
	// matching symbols for a near-miss loss. HasPattern is false for a
	// plain random loss.
	Pattern    Line
	HasPattern bool
}

// Generator builds final grids for an outcome decided beforehand.
type Generator struct {
	rng          *rand.Rand
	palette      Palette
	twoMatchLose bool
}

// NewGenerator creates a Generator drawing from rng and palette. With
// twoMatchLose, losing grids are seeded with a near miss.
func NewGenerator(rng *rand.Rand, palette Palette, twoMatchLose bool) *Generator {
	return &Generator{rng: rng, palette: palette, twoMatchLose: twoMatchLose}
}

// Generate returns a final grid that wins iff outcome is true.
func (g *Generator) Generate(outcome bool) Grid {
	return g.Draw(outcome).Grid
}

// Draw is like Generate, but also reports the pattern used.
func (g *Generator) Draw(outcome bool) Draw {
	if outcome {
		return g.Win()
	}
	return g.Lose(g.twoMatchLose)
}

// Win returns a grid where one of the middle row, main diagonal or
// anti-diagonal holds three equal symbols.
func (g *Generator) Win() Draw {
	pattern := WinPatterns[g.rng.IntN(len(WinPatterns))]
	symbol := g.palette.Draw(g.rng)

	d := Draw{Win: true, Pattern: pattern, HasPattern: true}
	g.fill(&d.Grid)
	for _, c := range pattern.Cells {
		d.Grid.Set(c, symbol)
	}
	if !g.fixUp(&d.Grid, &pattern) {
		klog.V(1).Infof("game: extra lines left on winning grid %s", d.Grid)
	}
	return d
}

// Lose returns a grid without any line of three. With twoMatch, one of the
// middle row, main diagonal or anti-diagonal is seeded with two equal symbols
// so near misses are common.
func (g *Generator) Lose(twoMatch bool) Draw {
	if !twoMatch {
		var d Draw
		g.fill(&d.Grid)
		if !g.fixUp(&d.Grid, nil) {
			d.Grid = g.lineFree()
		}
		return d
	}

	var d Draw
	for range maxNearMissAttempts {
		d = Draw{Pattern: WinPatterns[g.rng.IntN(len(WinPatterns))], HasPattern: true}
		symbol := g.palette.Draw(g.rng)
		g.fill(&d.Grid)
		d.Grid.Set(d.Pattern.Cells[0], symbol)
		d.Grid.Set(d.Pattern.Cells[1], symbol)
		g.differ(&d.Grid, d.Pattern.Cells[2], symbol)

		// The fix-up wins over the seeded pair.
		if !g.fixUp(&d.Grid, nil) {
			d.Grid = g.lineFree()
			return d
		}
		if len(NearMisses(&d.Grid)) > 0 {
			return d
		}
	}
	return d
}

func (g *Generator) fill(grid *Grid) {
	for col := range Cols {
		for row := range Rows {
			grid[col][row] = g.palette.Draw(g.rng)
		}
	}
}

// differ redraws cell c if it holds symbol.
func (g *Generator) differ(grid *Grid, c Cell, symbol Symbol) {
	if grid.At(c) == symbol {
		grid.Set(c, g.palette.DrawExcept(g.rng, symbol))
	}
}

// fixUp breaks every line of three except keep, scanning lines in order and
// redrawing each matching line's tie-break cell. Cells of keep are never
// redrawn: the first other cell of the line is used instead. It rescans
// until clean and reports whether it got there within maxFixPasses.
func (g *Generator) fixUp(grid *Grid, keep *Line) bool {
	for range maxFixPasses {
		clean := true
		for _, l := range Lines {
			if keep != nil && l == *keep {
				continue
			}
			if !l.Matches(grid) {
				continue
			}
			clean = false
			target := l.TieBreak
			if keep != nil && keep.Contains(target) {
				for _, c := range l.Cells {
					if !keep.Contains(c) {
						target = c
						break
					}
				}
			}
			g.differ(grid, target, grid.At(target))
		}
		if clean {
			return true
		}
	}
	return false
}

// lineFree is a fixed losing layout, used only if the fix-up can't settle.
func (g *Generator) lineFree() Grid {
	a, b := g.palette.Symbol(0), g.palette.Symbol(1)
	klog.Warningf("game: fix-up did not settle, using fixed losing layout")
	return Grid{
		{a, a, b},
		{b, b, a},
		{a, a, b},
	}
}
