package statemachine

import (
	"sync"
)

// StateFn is a state expressed as a function, following Rob Pike's lexer
// pattern: each state does its work against the entity and returns the next
// state function, or nil to terminate.
type StateFn[T any] func(*T) StateFn[T]

// Machine is a minimal thread-safe wrapper around a current StateFn. The
// entity itself holds all mutable data; the machine only tracks which state
// function is current.
type Machine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// New creates a machine for entity starting at initial.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{
		entity:  entity,
		stateFn: initial,
	}
}

// Dispatch sets stateFn as current, runs it once, and stores the state it
// returns. A nil stateFn terminates the machine.
func (m *Machine[T]) Dispatch(stateFn StateFn[T]) {
	m.mu.Lock()
	m.stateFn = stateFn
	m.mu.Unlock()

	if stateFn == nil {
		return
	}

	next := stateFn(m.entity)

	m.mu.Lock()
	m.stateFn = next
	m.mu.Unlock()
}

// Current returns the current state function.
func (m *Machine[T]) Current() StateFn[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateFn
}

// SetState replaces the current state without executing it.
func (m *Machine[T]) SetState(stateFn StateFn[T]) {
	m.mu.Lock()
	m.stateFn = stateFn
	m.mu.Unlock()
}

// Terminated reports whether the machine has reached the nil state.
func (m *Machine[T]) Terminated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateFn == nil
}
