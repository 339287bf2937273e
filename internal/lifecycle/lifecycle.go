package lifecycle

import "fmt"

// Phase is a campaign lifecycle state. Phases only move forward.
type Phase string

const (
	PhaseDraft             Phase = "draft"
	PhaseSurveyOpen        Phase = "survey_open"
	PhaseSurveyClosed      Phase = "survey_closed"
	PhaseGenerating        Phase = "generating"
	PhaseMatchesReady      Phase = "matches_ready"
	PhaseProfileUpdateOpen Phase = "profile_update_open"
	PhaseRevealed          Phase = "revealed"
	PhaseArchived          Phase = "archived"
)

// transitions is the legal edge set. matches_ready -> generating allows
// regeneration; survey_closed -> matches_ready is the manual-only shortcut
// for campaigns that never run the planner.
var transitions = map[Phase][]Phase{
	PhaseDraft:             {PhaseSurveyOpen},
	PhaseSurveyOpen:        {PhaseSurveyClosed},
	PhaseSurveyClosed:      {PhaseGenerating, PhaseMatchesReady},
	PhaseGenerating:        {PhaseMatchesReady},
	PhaseMatchesReady:      {PhaseGenerating, PhaseProfileUpdateOpen},
	PhaseProfileUpdateOpen: {PhaseRevealed},
	PhaseRevealed:          {PhaseArchived},
	PhaseArchived:          nil,
}

// Parse validates a stored phase string.
func Parse(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := transitions[p]; !ok {
		return "", fmt.Errorf("unknown campaign phase %q", s)
	}
	return p, nil
}

// CanTransition reports whether from -> to is a legal forward move.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the legal successor phases of p.
func Next(p Phase) []Phase {
	out := make([]Phase, len(transitions[p]))
	copy(out, transitions[p])
	return out
}

// CanGenerate reports whether the planner may run in the given phase.
func CanGenerate(p Phase) bool {
	switch p {
	case PhaseSurveyClosed, PhaseGenerating, PhaseMatchesReady:
		return true
	}
	return false
}

// CanManualMatch reports whether an administrator may force a match in the
// given phase. Overrides normally require an automatic baseline to exist;
// manual-only campaigns may take overrides as soon as the survey closes.
func CanManualMatch(p Phase, manualOnly bool) bool {
	switch p {
	case PhaseMatchesReady, PhaseProfileUpdateOpen, PhaseRevealed:
		return true
	case PhaseSurveyClosed, PhaseGenerating:
		return manualOnly
	}
	return false
}

// Occupied reports whether the phase counts against the single-active
// invariant: at most one campaign may sit outside draft/archived.
func Occupied(p Phase) bool {
	return p != PhaseDraft && p != PhaseArchived
}

// Terminal reports whether the phase ends the campaign lifecycle.
func Terminal(p Phase) bool { return p == PhaseArchived }
