package runctx

import (
	"log/slog"
	"sync"
)

// Phase is the top-level state of a run.
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhaseAcquiring Phase = "ACQUIRING"
	PhaseRunning   Phase = "RUNNING"
	PhasePaused    Phase = "PAUSED"
	PhaseDraining  Phase = "DRAINING"
	PhaseDone      Phase = "DONE"
	PhaseAborted   Phase = "ABORTED"
)

// State tracks the run phase. Transitions follow
// INIT -> ACQUIRING -> RUNNING <-> PAUSED -> DRAINING -> DONE, with
// ABORTED reachable from any live phase and DRAINING from any live
// phase (end of input or fatal error).
type State struct {
	mu     sync.Mutex
	phase  Phase
	logger *slog.Logger
}

// NewState starts at INIT.
func NewState(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{phase: PhaseInit, logger: logger}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// To moves to next when the transition is legal and reports whether it
// happened. Illegal transitions are logged and ignored.
func (s *State) To(next Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validTransition(s.phase, next) {
		s.logger.Warn("invalid run phase transition", "from", s.phase, "to", next)
		return false
	}
	s.logger.Debug("run phase", "from", s.phase, "to", next)
	s.phase = next
	return true
}

// Terminal reports whether the run has ended.
func (s *State) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseDone || s.phase == PhaseAborted
}

func validTransition(from, to Phase) bool {
	if from == to {
		return false
	}
	// Terminal phases stay put.
	if from == PhaseDone || from == PhaseAborted {
		return false
	}
	// Any live phase can abort or start draining.
	if to == PhaseAborted || to == PhaseDraining {
		return true
	}

	switch from {
	case PhaseInit:
		return to == PhaseAcquiring
	case PhaseAcquiring:
		return to == PhaseRunning
	case PhaseRunning:
		return to == PhasePaused
	case PhasePaused:
		return to == PhaseRunning
	case PhaseDraining:
		return to == PhaseDone
	}
	return false
}
