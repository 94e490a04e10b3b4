package minify

import "fmt"

// Phase is a stage of a minimization run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSubsettingFonts
	PhaseFinalizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseSubsettingFonts:
		return "subsetting-fonts"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:            {PhaseScanning},
	PhaseScanning:        {PhaseSubsettingFonts, PhaseFinalizing},
	PhaseSubsettingFonts: {PhaseFinalizing},
	PhaseFinalizing:      {PhaseDone},
}

// phaseMachine tracks the phases of one run. Phases only move forward and
// fonts are never subset before scanning has finished.
type phaseMachine struct {
	current Phase
	visited []Phase
}

func (m *phaseMachine) advance(next Phase) error {
	for _, allowed := range phaseTransitions[m.current] {
		if allowed == next {
			m.current = next
			m.visited = append(m.visited, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, m.current, next)
}
