package sessions

import "fmt"

// WindowState is which widget panel is showing.
type WindowState string

const (
	StateClosed         WindowState = "closed"
	StateChooser        WindowState = "chooser"
	StateTextOpen       WindowState = "text_open"
	StateVoiceOpen      WindowState = "voice_open"
	StateTextMinimized  WindowState = "text_minimized"
	StateVoiceMinimized WindowState = "voice_minimized"
)

var transitions = map[WindowState][]WindowState{
	StateClosed:         {StateChooser},
	StateChooser:        {StateTextOpen, StateVoiceOpen, StateClosed},
	StateTextOpen:       {StateTextMinimized, StateChooser, StateClosed},
	StateVoiceOpen:      {StateVoiceMinimized, StateChooser, StateClosed},
	StateTextMinimized:  {StateTextOpen, StateClosed},
	StateVoiceMinimized: {StateVoiceOpen, StateClosed},
}

func (s WindowState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the widget may move from one state to another.
// Re-posting the current state is always allowed.
func CanTransition(from, to WindowState) bool {
	if !to.Valid() {
		return false
	}
	if from == "" {
		from = StateClosed
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From, To WindowState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid window transition %s -> %s", e.From, e.To)
}
