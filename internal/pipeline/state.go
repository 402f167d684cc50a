// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import "fmt"

type taskState string

const (
	stateNew        taskState = "new"
	statePreflight  taskState = "preflight"
	statePlanned    taskState = "planned"
	stateAttempting taskState = "attempting"
	stateSucceeded  taskState = "succeeded"
	stateFailed     taskState = "failed"
	stateSkipped    taskState = "skipped"
	stateCancelled  taskState = "cancelled"
)

type taskEvent string

const (
	eventPreflight taskEvent = "preflight"
	eventPlan      taskEvent = "plan"
	eventAttempt   taskEvent = "attempt"
	eventSucceed   taskEvent = "succeed"
	eventFail      taskEvent = "fail"
	eventSkip      taskEvent = "skip"
	eventCancel    taskEvent = "cancel"
)

// taskTransitions is the per-task lifecycle table: NEW -> PREFLIGHT ->
// PLANNED -> ATTEMPTING -> {SUCCEEDED, FAILED, CANCELLED}, with SKIPPED
// reachable from NEW and PREFLIGHT and CANCELLED from every later
// non-terminal state. It
// exists to make the task lifecycle an explicit, testable value rather than
// control flow scattered across Process; Process drives it but the attempt
// retry loop itself is plain iteration over an AttemptPlan, not additional
// states (one state per retry would just restate the AttemptPlan index).
var taskTransitions = map[taskState]map[taskEvent]taskState{
	stateNew: {
		eventPreflight: statePreflight,
		eventSkip:      stateSkipped,
	},
	statePreflight: {
		eventSkip:   stateSkipped,
		eventPlan:   statePlanned,
		eventCancel: stateCancelled,
	},
	statePlanned: {
		eventAttempt: stateAttempting,
		eventCancel:  stateCancelled,
	},
	stateAttempting: {
		eventSucceed: stateSucceeded,
		eventFail:    stateFailed,
		eventCancel:  stateCancelled,
	},
}

// taskMachine is a single task's lifecycle cursor. It is not safe for
// concurrent use; one Process call owns exactly one taskMachine.
type taskMachine struct {
	state taskState
}

func newTaskMachine() *taskMachine {
	return &taskMachine{state: stateNew}
}

// fire drives the machine from its current state to the transition table's
// target for event, or reports an error if no such transition exists. An
// invalid transition never panics and never blocks Process: the pipeline
// logs it and carries on, since the state machine's job is to make the
// lifecycle observable, not to gate execution.
func (m *taskMachine) fire(event taskEvent) (taskState, error) {
	next, ok := taskTransitions[m.state][event]
	if !ok {
		return m.state, fmt.Errorf("pipeline: no transition for event %q from state %q", event, m.state)
	}
	m.state = next
	return m.state, nil
}
