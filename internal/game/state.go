package game

import (
	"fmt"
	"strings"
)

// Phase of a round as seen from outside.
type Phase string

const (
	PhaseSpinning Phase = "spinning"
	PhaseFinished Phase = "finished"
)

// RoundView is a read-only copy of a round, sent to clients and used for logging.
type RoundView struct {
	SessionID string `json:"session_id"`
	// Number is the 1-based round counter within the session.
	Number int   `json:"number"`
	Phase  Phase `json:"phase"`
	// Next is the next column to stop, Cols once finished.
	Next      int        `json:"next"`
	Stopped   [Cols]bool `json:"stopped"`
	Displayed Grid       `json:"displayed"`
	// Won and Banner are only set once the round is finished.
	Won    bool   `json:"won"`
	Banner string `json:"banner"`
}

func (v *RoundView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s: round=%d, phase=%s, next=%d, stopped=%v", v.SessionID, v.Number, v.Phase, v.Next, v.Stopped)
	if v.Phase == PhaseFinished {
		fmt.Fprintf(&sb, ", won=%t, grid=%s", v.Won, v.Displayed)
	}
	return sb.String()
}
