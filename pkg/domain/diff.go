package domain

import (
	"reflect"
)

// Diff calculates the keys that changed between two state snapshots.
// Added or modified keys carry their new value; deleted keys map to nil.
// If oldState is nil, every key of newState is part of the delta (initial step).
// It returns nil when nothing changed so that omitempty can drop the field.
func Diff(oldState, newState State) map[string]any {
	delta := make(map[string]any)

	if oldState == nil {
		for k, v := range newState {
			delta[k] = v
		}
		return nilIfEmpty(delta)
	}

	// Added or Modified
	for k, newVal := range newState {
		oldVal, exists := oldState[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	// Deletions
	for k := range oldState {
		if _, exists := newState[k]; !exists {
			delta[k] = nil
		}
	}

	return nilIfEmpty(delta)
}

func nilIfEmpty(delta map[string]any) map[string]any {
	if len(delta) == 0 {
		return nil
	}
	return delta
}
