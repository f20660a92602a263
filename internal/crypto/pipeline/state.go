package pipeline

import "fmt"

// State is a step of the run state machine.
type State int

const (
	Idle State = iota
	Cleaned
	Transformed
	Persisted
	Exported
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Cleaned:
		return "cleaned"
	case Transformed:
		return "transformed"
	case Persisted:
		return "persisted"
	case Exported:
		return "exported"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stage names the step that failed.
type Stage string

const (
	StagePersist Stage = "persist"
	StageExport  Stage = "export"
)

// StageError labels a failed run with the stage and its cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
