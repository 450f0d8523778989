package pipeline

// State is the lifecycle position of one layer unit.
type State string

const (
	StatePending     State = "pending"
	StateResolving   State = "resolving"
	StateClassifying State = "classifying"
	StateRewriting   State = "rewriting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
