// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import "testing"

func TestTaskMachineHappyPath(t *testing.T) {
	m := newTaskMachine()

	for _, step := range []struct {
		event taskEvent
		want  taskState
	}{
		{eventPreflight, statePreflight},
		{eventPlan, statePlanned},
		{eventAttempt, stateAttempting},
		{eventSucceed, stateSucceeded},
	} {
		got, err := m.fire(step.event)
		if err != nil {
			t.Fatalf("fire(%v): %v", step.event, err)
		}
		if got != step.want {
			t.Errorf("fire(%v) = %v, want %v", step.event, got, step.want)
		}
	}
}

func TestTaskMachineSkipFromNew(t *testing.T) {
	m := newTaskMachine()
	got, err := m.fire(eventSkip)
	if err != nil {
		t.Fatalf("fire(eventSkip): %v", err)
	}
	if got != stateSkipped {
		t.Errorf("state = %v, want %v", got, stateSkipped)
	}
}

func TestTaskMachineRejectsInvalidTransition(t *testing.T) {
	m := newTaskMachine()
	if _, err := m.fire(eventSucceed); err == nil {
		t.Error("fire(eventSucceed) from stateNew should be rejected")
	}
	if m.state != stateNew {
		t.Errorf("rejected transition must not move state, got %v", m.state)
	}
}

func TestTaskMachineCancelFromEachMidState(t *testing.T) {
	setupPaths := [][]taskEvent{
		{eventPreflight},
		{eventPreflight, eventPlan},
		{eventPreflight, eventPlan, eventAttempt},
	}
	for _, path := range setupPaths {
		m := newTaskMachine()
		for _, event := range path {
			if _, err := m.fire(event); err != nil {
				t.Fatalf("setup fire(%v): %v", event, err)
			}
		}
		if _, err := m.fire(eventCancel); err != nil {
			t.Errorf("fire(eventCancel) from %v: %v", m.state, err)
		}
		if m.state != stateCancelled {
			t.Errorf("state after cancel = %v, want %v", m.state, stateCancelled)
		}
	}
}
