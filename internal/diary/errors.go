package diary

import (
	"fmt"
	"time"
)

// State is a step of the save workflow
type State string

const (
	StateDrafting    State = "drafting"
	StateClassifying State = "classifying"
	StateResolved    State = "resolved"
	StateFailed      State = "failed"
)

// SaveError reports a save that did not complete and the state it ended in.
// Nothing was written to the store.
type SaveError struct {
	Timestamp time.Time
	State     State
	Err       error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save entry %s (%s): %v", e.Timestamp.Format(time.RFC3339Nano), e.State, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
