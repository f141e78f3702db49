package streaming

import (
	"errors"
	"sync"
	"testing"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestStateMachineHappyPath(t *testing.T) {
	listener := &captureListener{}
	sm := newStateMachine()
	sm.AddListener(listener)

	steps := []State{StateConnecting, StateAwaitingReady, StateSending, StateAwaitingResult, StateCompleted}
	for _, next := range steps {
		if err := sm.Transition(next, "test"); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if sm.State() != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", sm.State())
	}
	if listener.Count() != len(steps) {
		t.Fatalf("expected %d notifications, got %d", len(steps), listener.Count())
	}
}

func TestStateMachineRejectsSkippedStates(t *testing.T) {
	sm := newStateMachine()
	err := sm.Transition(StateSending, "skipping connect")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StateIdle || invalid.To != StateSending {
		t.Fatalf("unexpected transition error %+v", invalid)
	}
	if sm.State() != StateIdle {
		t.Fatalf("a rejected transition must not move the state")
	}
}

func TestStateMachineFailureFromAnyActiveState(t *testing.T) {
	for _, from := range []State{StateConnecting, StateAwaitingReady, StateSending, StateAwaitingResult} {
		sm := newStateMachine()
		path := []State{StateConnecting, StateAwaitingReady, StateSending, StateAwaitingResult}
		for _, next := range path {
			if err := sm.Transition(next, "walk"); err != nil {
				t.Fatalf("walk to %s: %v", next, err)
			}
			if next == from {
				break
			}
		}
		if err := sm.Transition(StateFailed, "boom"); err != nil {
			t.Fatalf("failure from %s must be allowed: %v", from, err)
		}
	}
}

func TestStateMachineTerminalStates(t *testing.T) {
	sm := newStateMachine()
	for _, next := range []State{StateConnecting, StateFailed} {
		if err := sm.Transition(next, "walk"); err != nil {
			t.Fatalf("walk: %v", err)
		}
	}
	if err := sm.Transition(StateConnecting, "restart"); err == nil {
		t.Fatalf("terminal states must reject further transitions")
	}
}
