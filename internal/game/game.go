package game

// Version of the game.
// Bumping this number will eventually make clients reload the WASM.
//
// If you set this to an empty string, a random version number will be
// used, and force the reload of the WASM on every restart.
var Version = "v0.1.0"

const (
	// Cols and Rows are the dimensions of the slot window.
	Cols = 3
	Rows = 3

	// WinBanner and LoseBanner are shown across the display after the last column stops.
	WinBanner  = "YOU WIN!!"
	LoseBanner = "TRY AGAIN"
)
