package game

import (
	"fmt"
	"strings"
)

// Symbol identifies what is drawn in one cell. The device draws it as an
// RGB565 colour, but the game only ever compares symbols for equality.
type Symbol uint16

// RGB returns the 8-bit per channel colour of an RGB565 symbol.
func (s Symbol) RGB() (r, g, b uint8) {
	r5 := uint8(s>>11) & 0x1F
	g6 := uint8(s>>5) & 0x3F
	b5 := uint8(s) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// Hex returns the symbol as a CSS colour, e.g. "#ff0000".
func (s Symbol) Hex() string {
	r, g, b := s.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// Cell addresses one position of the grid.
type Cell struct {
	Col, Row int
}

// Grid is the 3x3 slot window, indexed [col][row].
type Grid [Cols][Rows]Symbol

// At returns the symbol at cell c.
func (g *Grid) At(c Cell) Symbol { return g[c.Col][c.Row] }

// Set stores s at cell c.
func (g *Grid) Set(c Cell, s Symbol) { g[c.Col][c.Row] = s }

// Column returns a copy of column col.
func (g *Grid) Column(col int) [Rows]Symbol { return g[col] }

func (g Grid) String() string {
	var sb strings.Builder
	for row := range Rows {
		if row > 0 {
			sb.WriteString(" / ")
		}
		for col := range Cols {
			if col > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%04x", uint16(g[col][row]))
		}
	}
	return sb.String()
}

// LineKind tells rows, columns and diagonals apart.
type LineKind int

const (
	RowLine LineKind = iota
	ColumnLine
	MainDiagonal
	AntiDiagonal
)

// Line is one of the eight ways to get three in a row.
type Line struct {
	Kind  LineKind
	Index int // Row or column index; 0 for diagonals.
	Cells [3]Cell

	// TieBreak is the cell redrawn when the line has to be broken.
	TieBreak Cell
}

func (l Line) String() string {
	switch l.Kind {
	case RowLine:
		return fmt.Sprintf("row %d", l.Index)
	case ColumnLine:
		return fmt.Sprintf("column %d", l.Index)
	case MainDiagonal:
		return "main diagonal"
	case AntiDiagonal:
		return "anti-diagonal"
	}
	return "unknown line"
}

// Contains reports whether c is one of the line's cells.
func (l Line) Contains(c Cell) bool {
	for _, lc := range l.Cells {
		if lc == c {
			return true
		}
	}
	return false
}

// Matches reports whether all three cells of the line hold the same symbol.
func (l Line) Matches(g *Grid) bool {
	a, b, c := g.At(l.Cells[0]), g.At(l.Cells[1]), g.At(l.Cells[2])
	return a == b && b == c
}

// Pairs returns the number of equal pairs among the line's cells: 0 when all
// differ, 1 when exactly two match, 3 when all three match.
func (l Line) Pairs(g *Grid) int {
	a, b, c := g.At(l.Cells[0]), g.At(l.Cells[1]), g.At(l.Cells[2])
	n := 0
	if a == b {
		n++
	}
	if b == c {
		n++
	}
	if a == c {
		n++
	}
	return n
}

// Lines lists every line in scan order: rows 0-2, columns 0-2, main diagonal,
// anti-diagonal.
var Lines = buildLines()

// The three lines a win (or a seeded near miss) can be built on.
var (
	MiddleRow   = Lines[1]
	MainDiag    = Lines[6]
	AntiDiag    = Lines[7]
	WinPatterns = [3]Line{MiddleRow, MainDiag, AntiDiag}
)

func buildLines() [8]Line {
	var lines [8]Line
	for r := range Rows {
		lines[r] = Line{
			Kind:     RowLine,
			Index:    r,
			Cells:    [3]Cell{{0, r}, {1, r}, {2, r}},
			TieBreak: Cell{2, r},
		}
	}
	for c := range Cols {
		lines[3+c] = Line{
			Kind:     ColumnLine,
			Index:    c,
			Cells:    [3]Cell{{c, 0}, {c, 1}, {c, 2}},
			TieBreak: Cell{c, 2},
		}
	}
	lines[6] = Line{
		Kind:     MainDiagonal,
		Cells:    [3]Cell{{0, 0}, {1, 1}, {2, 2}},
		TieBreak: Cell{2, 2},
	}
	lines[7] = Line{
		Kind:     AntiDiagonal,
		Cells:    [3]Cell{{0, 2}, {1, 1}, {2, 0}},
		TieBreak: Cell{2, 0},
	}
	return lines
}
