// Package fsm implements a small, generic event-driven state machine: the
// same exhaustive (state, event) → (state, callbacks) engine that drives
// both the GEM communication-state machine (C7) and the GEM control-state
// machine (C8). It is deliberately data-driven — states and events are
// plain strings — so each GEM layer can describe its machine as a literal
// table rather than hand-rolling a switch statement.
package fsm

import (
	"sync"

	"github.com/wolimst/gosecs/internal/secserr"
)

// State and Event are opaque machine-defined names.
type State string
type Event string

// EventDesc declares one legal transition: firing Name while the machine is
// in any state listed in Src moves it to Dst.
type EventDesc struct {
	Name Event
	Src  []State
	Dst  State
}

// AutoEdge declares an implicit transition the machine takes on its own
// once it settles in Src, with no external event firing it.
type AutoEdge struct {
	Src State
	Dst State
}

// Callbacks groups every hook the machine consults during a transition.
// A nil entry is simply not called. The maps are keyed by the exact state
// (OnLeave/OnEnter) or event (OnBefore/OnAfter); there is no wildcard key.
type Callbacks struct {
	// OnBefore runs before leaving Src; returning false cancels the
	// transition before any state change is observed.
	OnBefore map[Event]func() bool
	// OnLeave runs while leaving a state; returning false defers the
	// transition — the caller must invoke Fire again later to complete it.
	OnLeave map[State]func() bool
	// OnEnter runs after entering Dst.
	OnEnter map[State]func()
	// OnAfter runs after the transition settles (after OnEnter).
	OnAfter map[Event]func()
	// OnChangeState runs after every settled transition, regardless of event.
	OnChangeState func(from, to State)
}

// Machine is a configured, runnable instance of an event-driven FSM.
type Machine struct {
	mu         sync.Mutex
	current    State
	events     map[Event][]EventDesc
	autoEdges  map[State]State
	callbacks  Callbacks
	inTransit  bool
}

// New builds a Machine starting in initial, with the given legal
// transitions, auto-forward edges, and callback set.
func New(initial State, events []EventDesc, autoEdges []AutoEdge, callbacks Callbacks) *Machine {
	m := &Machine{
		current:   initial,
		events:    make(map[Event][]EventDesc),
		autoEdges: make(map[State]State),
		callbacks: callbacks,
	}
	for _, e := range events {
		m.events[e.Name] = append(m.events[e.Name], e)
	}
	for _, a := range autoEdges {
		m.autoEdges[a.Src] = a.Dst
	}
	return m
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Fire attempts event from the current state. It fails with
// KindInvalidTransition if no EventDesc matches (event, current), and with
// KindTransitionInProgress if called reentrantly from within a callback.
func (m *Machine) Fire(event Event) error {
	m.mu.Lock()
	if m.inTransit {
		m.mu.Unlock()
		return secserr.New(secserr.KindTransitionInProgress, "fsm: %s fired while a transition is in progress", event)
	}

	descs := m.events[event]
	var dst State
	matched := false
	for _, d := range descs {
		if stateIn(m.current, d.Src) {
			dst = d.Dst
			matched = true
			break
		}
	}
	if !matched {
		current := m.current
		m.mu.Unlock()
		return secserr.New(secserr.KindInvalidTransition, "fsm: no transition for event %s from state %s", event, current)
	}

	if before := m.callbacks.OnBefore[event]; before != nil {
		m.inTransit = true
		m.mu.Unlock()
		proceed := before()
		m.mu.Lock()
		m.inTransit = false
		if !proceed {
			m.mu.Unlock()
			return nil
		}
	}

	src := m.current
	if leave := m.callbacks.OnLeave[src]; leave != nil {
		m.inTransit = true
		m.mu.Unlock()
		proceed := leave()
		m.mu.Lock()
		m.inTransit = false
		if !proceed {
			m.mu.Unlock()
			return nil
		}
	}

	m.current = dst
	m.inTransit = true
	m.mu.Unlock()

	m.settle(src, dst, event)
	return nil
}

// settle runs onenter/onafter/onchangestate for a transition that has
// already moved current to dst, then follows any chained auto-forward edges
// until none applies.
func (m *Machine) settle(src, dst State, event Event) {
	if enter := m.callbacks.OnEnter[dst]; enter != nil {
		enter()
	}
	if after := m.callbacks.OnAfter[event]; after != nil {
		after()
	}
	if m.callbacks.OnChangeState != nil {
		m.callbacks.OnChangeState(src, dst)
	}

	m.mu.Lock()
	m.inTransit = false
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next, ok := m.autoEdges[m.current]
		if !ok {
			m.mu.Unlock()
			return
		}
		from := m.current
		m.current = next
		m.inTransit = true
		m.mu.Unlock()

		if enter := m.callbacks.OnEnter[next]; enter != nil {
			enter()
		}
		if m.callbacks.OnChangeState != nil {
			m.callbacks.OnChangeState(from, next)
		}
		m.mu.Lock()
		m.inTransit = false
		m.mu.Unlock()
	}
}

func stateIn(s State, set []State) bool {
	for _, c := range set {
		if c == s {
			return true
		}
	}
	return false
}
