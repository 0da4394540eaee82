package orchestrator

import "fmt"

// State is a phase of a run.
type State int

const (
	Scanning State = iota
	AwaitingTypeSelection
	Downloading
	AwaitingRetryDecision
	Retrying
	Done
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case AwaitingTypeSelection:
		return "awaiting_type_selection"
	case Downloading:
		return "downloading"
	case AwaitingRetryDecision:
		return "awaiting_retry_decision"
	case Retrying:
		return "retrying"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind identifies what just happened in the current state.
type EventKind int

const (
	// ScanFinished carries the inventory size in Count.
	ScanFinished EventKind = iota
	// SelectionMade carries the number of files selected in Count.
	SelectionMade
	// SelectionDeclined means the operator chose not to download anything.
	SelectionDeclined
	// PassFinished carries the number of failed outcomes in Count.
	PassFinished
	RetryAccepted
	RetryDeclined
	RetryFinished
	// Aborted ends the run from any state.
	Aborted
)

// Event is the input to Next.
type Event struct {
	Kind  EventKind
	Count int
}

// Next returns the state that follows s on e. Events that do not apply to s
// leave it unchanged; Done is terminal.
func Next(s State, e Event) State {
	if s == Done {
		return Done
	}
	if e.Kind == Aborted {
		return Done
	}

	switch s {
	case Scanning:
		if e.Kind == ScanFinished {
			if e.Count == 0 {
				return Done
			}
			return AwaitingTypeSelection
		}
	case AwaitingTypeSelection:
		switch e.Kind {
		case SelectionDeclined:
			return Done
		case SelectionMade:
			if e.Count == 0 {
				return AwaitingTypeSelection
			}
			return Downloading
		}
	case Downloading:
		if e.Kind == PassFinished {
			if e.Count == 0 {
				return Done
			}
			return AwaitingRetryDecision
		}
	case AwaitingRetryDecision:
		switch e.Kind {
		case RetryAccepted:
			return Retrying
		case RetryDeclined:
			return Done
		}
	case Retrying:
		if e.Kind == RetryFinished {
			return Done
		}
	}
	return s
}
