package statemachine

import (
	"testing"
)

type counter struct {
	ticks int
}

func tickState(c *counter) StateFn[counter] {
	c.ticks++
	if c.ticks >= 3 {
		return nil
	}
	return tickState
}

func TestDispatchRunsStateOnce(t *testing.T) {
	c := &counter{}
	m := New(c, tickState)

	m.Dispatch(tickState)
	if c.ticks != 1 {
		t.Fatalf("ticks = %d, want 1", c.ticks)
	}
	if m.Terminated() {
		t.Fatal("machine terminated early")
	}

	m.Dispatch(tickState)
	m.Dispatch(tickState)
	if !m.Terminated() {
		t.Fatal("machine should terminate after three ticks")
	}
}

func TestSetStateDoesNotExecute(t *testing.T) {
	c := &counter{}
	m := New(c, nil)

	m.SetState(tickState)
	if c.ticks != 0 {
		t.Fatalf("SetState executed the state function")
	}
	if m.Current() == nil {
		t.Fatal("current state not set")
	}
}

func TestDispatchNilTerminates(t *testing.T) {
	c := &counter{}
	m := New(c, tickState)

	m.Dispatch(nil)
	if !m.Terminated() {
		t.Fatal("nil dispatch should terminate")
	}
}
