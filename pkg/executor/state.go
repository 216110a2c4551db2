package executor

// State is a phase of the step state machine:
//
//	Perceiving -> Resolving -> Executing -> Evaluating -> Finished
//	                                           |
//	                                           v
//	                  Perceiving <-------- Recovering
//
// Failed attempts go back to Perceiving until the attempt limit is reached.
type State string

const (
	StatePerceiving State = "perceiving"
	StateResolving  State = "resolving"
	StateExecuting  State = "executing"
	StateEvaluating State = "evaluating"
	StateRecovering State = "recovering"
	StateFinished   State = "finished"
)

// IsTerminal reports whether the machine has stopped.
func (s State) IsTerminal() bool {
	return s == StateFinished
}
