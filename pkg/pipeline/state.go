package pipeline

import (
	"time"

	"github.com/jllopis/crewsum/pkg/core"
)

// State is a step of the two-stage run.
type State int

const (
	StateIdle State = iota
	StateAnalysisPending
	StateAnalysisComplete
	StateSummaryPending
	StateSummaryComplete
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalysisPending:
		return "analysis_pending"
	case StateAnalysisComplete:
		return "analysis_complete"
	case StateSummaryPending:
		return "summary_pending"
	case StateSummaryComplete:
		return "summary_complete"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSummaryComplete || s == StateErrored
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateErrored {
		return true
	}
	return to == from+1
}

// RunEvent describes one state transition.
type RunEvent struct {
	RunID string
	From  State
	To    State
	// Role is set for transitions that start or finish a role's work.
	Role core.RoleName
	// Err is set when To is StateErrored.
	Err error
	At  time.Time
}

// Observer receives every transition of every run, synchronously.
type Observer func(RunEvent)
