package engine

import (
	"fmt"

	"github.com/webllm/renderify/internal/plan"
)

// Apply mutates state according to one declarative action. The snapshot is
// modified in place; callers that need rollback apply against a Clone and
// commit only on success.
func Apply(action plan.Action, state map[string]interface{}, event *plan.Event, ctx *Context) error {
	switch action.Type {
	case plan.ActionSet:
		Set(state, action.Path, Resolve(action.Value, state, event, ctx))
		return nil

	case plan.ActionIncrement:
		by := 1.0
		if action.By != nil {
			by = *action.By
		}
		base := toNumber(Get(state, action.Path))
		Set(state, action.Path, base+by)
		return nil

	case plan.ActionToggle:
		base, _ := Get(state, action.Path).(bool)
		Set(state, action.Path, !base)
		return nil

	case plan.ActionPush:
		value := Resolve(action.Value, state, event, ctx)
		current := Get(state, action.Path)
		if arr, ok := current.([]interface{}); ok {
			// Copy before append so shared snapshots never alias.
			next := make([]interface{}, 0, len(arr)+1)
			next = append(next, arr...)
			next = append(next, value)
			Set(state, action.Path, next)
		} else {
			Set(state, action.Path, []interface{}{value})
		}
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// ApplyAll applies an ordered action batch, stopping at the first failure.
// Returns the number of actions applied.
func ApplyAll(actions []plan.Action, state map[string]interface{}, event *plan.Event, ctx *Context) (int, error) {
	for i, action := range actions {
		if err := Apply(action, state, event, ctx); err != nil {
			return i, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return len(actions), nil
}

// toNumber coerces JSON scalars to float64, treating everything else as 0.
func toNumber(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}
