package minify

import (
	"errors"
	"slices"
	"testing"
)

func TestPhaseMachine(t *testing.T) {
	var m phaseMachine
	for _, p := range []Phase{PhaseScanning, PhaseSubsettingFonts, PhaseFinalizing, PhaseDone} {
		if err := m.advance(p); err != nil {
			t.Fatalf("advance(%s): %v", p, err)
		}
	}
	if !slices.Equal(m.visited, []Phase{PhaseScanning, PhaseSubsettingFonts, PhaseFinalizing, PhaseDone}) {
		t.Errorf("visited = %v", m.visited)
	}
}

func TestPhaseMachineSkipsFonts(t *testing.T) {
	var m phaseMachine
	for _, p := range []Phase{PhaseScanning, PhaseFinalizing, PhaseDone} {
		if err := m.advance(p); err != nil {
			t.Fatalf("advance(%s): %v", p, err)
		}
	}
}

func TestPhaseMachineRejectsOutOfOrder(t *testing.T) {
	tests := map[string][]Phase{
		"fonts before scan": {PhaseSubsettingFonts},
		"repeat scan":       {PhaseScanning, PhaseScanning},
		"backwards":         {PhaseScanning, PhaseFinalizing, PhaseSubsettingFonts},
		"done early":        {PhaseScanning, PhaseDone},
		"after done":        {PhaseScanning, PhaseFinalizing, PhaseDone, PhaseScanning},
	}
	for name, seq := range tests {
		var m phaseMachine
		var err error
		for _, p := range seq {
			if err = m.advance(p); err != nil {
				break
			}
		}
		if !errors.Is(err, ErrPhaseOrder) {
			t.Errorf("%s: err = %v, want ErrPhaseOrder", name, err)
		}
	}
}
