package game

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// MaxResample bounds the rejection sampling in DrawExcept before falling back
// to a deterministic pick.
const MaxResample = 64

// ErrPaletteTooSmall is returned when a palette can't provide two distinct symbols.
var ErrPaletteTooSmall = errors.New("palette needs at least 2 distinct symbols")

// Palette is the set of symbols a grid is drawn from. The zero value is the
// full 16-bit symbol space.
type Palette struct {
	symbols []Symbol
}

// FullPalette draws from every 16-bit symbol.
func FullPalette() Palette { return Palette{} }

// NewPalette builds a palette from the given symbols, dropping duplicates.
// An empty list yields the full palette.
func NewPalette(symbols []Symbol) (Palette, error) {
	if len(symbols) == 0 {
		return FullPalette(), nil
	}
	uniq := slices.Clone(symbols)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)
	if len(uniq) < 2 {
		return Palette{}, ErrPaletteTooSmall
	}
	return Palette{symbols: uniq}, nil
}

// Size is the number of distinct symbols in the palette.
func (p Palette) Size() int {
	if p.symbols == nil {
		return 1 << 16
	}
	return len(p.symbols)
}

// Symbol returns the i-th symbol of the palette, 0 <= i < Size().
func (p Palette) Symbol(i int) Symbol {
	if p.symbols == nil {
		return Symbol(i)
	}
	return p.symbols[i]
}

// Draw returns a uniformly random symbol.
func (p Palette) Draw(rng *rand.Rand) Symbol {
	return p.Symbol(rng.IntN(p.Size()))
}

// DrawExcept returns a random symbol different from not. After MaxResample
// rejected draws it returns the first palette symbol that differs.
func (p Palette) DrawExcept(rng *rand.Rand, not Symbol) Symbol {
	for range MaxResample {
		if s := p.Draw(rng); s != not {
			return s
		}
	}
	if s := p.Symbol(0); s != not {
		return s
	}
	return p.Symbol(1)
}
