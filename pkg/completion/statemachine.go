package completion

import (
	"slices"
	"sync"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

type State uint8

const (
	Running State = iota
	AwaitingFirstClientSignal
	Terminating
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case AwaitingFirstClientSignal:
		return "AwaitingFirstClientSignal"
	case Terminating:
		return "Terminating"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

var validTransitions = map[State][]State{
	Running:                   {AwaitingFirstClientSignal, Done},
	AwaitingFirstClientSignal: {Terminating, Done},
	Terminating:               {Done},
	Done:                      {}, // Terminal state
}

type StateMachine struct {
	mu    sync.Mutex
	state State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: Running}
}

func (sm *StateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	return sm.state
}

func (sm *StateMachine) Transition(to State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !slices.Contains(validTransitions[sm.state], to) {
		return pkgerrors.ErrInvalidTransition
	}
	sm.state = to

	return nil
}
