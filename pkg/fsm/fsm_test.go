package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stateIdle    State = "idle"
	stateRunning State = "running"
	stateDone    State = "done"

	eventStart  Event = "start"
	eventFinish Event = "finish"
)

func newTestMachine(cb Callbacks) *Machine {
	return New(stateIdle,
		[]EventDesc{
			{Name: eventStart, Src: []State{stateIdle}, Dst: stateRunning},
			{Name: eventFinish, Src: []State{stateRunning}, Dst: stateDone},
		},
		nil,
		cb,
	)
}

func TestMachine_Fire_MovesToDeclaredDestination(t *testing.T) {
	m := newTestMachine(Callbacks{})
	require.NoError(t, m.Fire(eventStart))
	assert.Equal(t, stateRunning, m.Current())
}

func TestMachine_Fire_RejectsUndeclaredTransition(t *testing.T) {
	m := newTestMachine(Callbacks{})
	err := m.Fire(eventFinish)
	assert.Error(t, err)
	assert.Equal(t, stateIdle, m.Current())
}

func TestMachine_Fire_AutoForwardsChain(t *testing.T) {
	m := New(stateIdle,
		[]EventDesc{{Name: eventStart, Src: []State{stateIdle}, Dst: stateRunning}},
		[]AutoEdge{{Src: stateRunning, Dst: stateDone}},
		Callbacks{},
	)
	require.NoError(t, m.Fire(eventStart))
	assert.Equal(t, stateDone, m.Current())
}

func TestMachine_Fire_OnBeforeCancelsTransition(t *testing.T) {
	m := newTestMachine(Callbacks{
		OnBefore: map[Event]func() bool{
			eventStart: func() bool { return false },
		},
	})
	require.NoError(t, m.Fire(eventStart))
	assert.Equal(t, stateIdle, m.Current())
}

func TestMachine_Fire_RunsEnterAfterAndChangeCallbacks(t *testing.T) {
	var entered, after bool
	var changedFrom, changedTo State

	m := newTestMachine(Callbacks{
		OnEnter: map[State]func(){
			stateRunning: func() { entered = true },
		},
		OnAfter: map[Event]func(){
			eventStart: func() { after = true },
		},
		OnChangeState: func(from, to State) {
			changedFrom, changedTo = from, to
		},
	})

	require.NoError(t, m.Fire(eventStart))
	assert.True(t, entered)
	assert.True(t, after)
	assert.Equal(t, stateIdle, changedFrom)
	assert.Equal(t, stateRunning, changedTo)
}

func TestMachine_Fire_ReentrantCallFailsWithTransitionInProgress(t *testing.T) {
	m := newTestMachine(Callbacks{})
	m.callbacks.OnEnter = map[State]func(){
		stateRunning: func() {
			err := m.Fire(eventFinish)
			assert.Error(t, err)
		},
	}
	require.NoError(t, m.Fire(eventStart))
}
