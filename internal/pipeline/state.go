package pipeline

// State is a phase of a dedupe run.
type State int

// Run states, in order.
const (
	StateLoading State = iota
	StateScoring
	StateReviewing
	StateMerging
	StateReporting
	StateDone
)

var stateNames = [...]string{"loading", "scoring", "reviewing", "merging", "reporting", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
