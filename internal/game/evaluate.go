package game

// Evaluate reports whether any of the eight lines has three equal symbols.
func Evaluate(g *Grid) bool {
	for _, l := range Lines {
		if l.Matches(g) {
			return true
		}
	}
	return false
}

// WinningLines returns the lines with three equal symbols, in scan order.
func WinningLines(g *Grid) []Line {
	var wins []Line
	for _, l := range Lines {
		if l.Matches(g) {
			wins = append(wins, l)
		}
	}
	return wins
}

// NearMisses returns the lines where exactly two of the three symbols match.
func NearMisses(g *Grid) []Line {
	var near []Line
	for _, l := range Lines {
		if l.Pairs(g) == 1 {
			near = append(near, l)
		}
	}
	return near
}
