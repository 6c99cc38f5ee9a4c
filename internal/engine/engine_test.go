package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webllm/renderify/internal/plan"
)

func TestGetSet(t *testing.T) {
	state := map[string]interface{}{
		"user": map[string]interface{}{"name": "ada"},
		"tags": []interface{}{"a", "b"},
	}

	assert.Equal(t, "ada", Get(state, "user.name"))
	assert.Equal(t, "b", Get(state, "tags.1"))
	assert.Nil(t, Get(state, "user.missing"))
	assert.Nil(t, Get(state, "tags.7"))
	assert.Nil(t, Get(state, ""))

	Set(state, "user.email", "ada@example.com")
	assert.Equal(t, "ada@example.com", Get(state, "user.email"))

	// Intermediate objects are created on demand.
	Set(state, "a.b.c", 1.0)
	assert.Equal(t, 1.0, Get(state, "a.b.c"))

	// Empty path writes are no-ops.
	before := len(state)
	Set(state, "", "ignored")
	assert.Len(t, state, before)
}

func TestForbiddenSegmentsAreInert(t *testing.T) {
	paths := []string{
		"__proto__.polluted",
		"a.__proto__.b",
		"constructor.prototype.x",
		"prototype",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			state := map[string]interface{}{"a": map[string]interface{}{}}

			// Writes are dropped, reads yield nil, nothing panics.
			Set(state, path, "evil")
			assert.Nil(t, Get(state, path))

			err := Apply(plan.Action{Type: plan.ActionSet, Path: path, Value: plan.LiteralRef("evil")}, state, nil, nil)
			assert.NoError(t, err)
			assert.Nil(t, Get(state, path))
		})
	}
}

func TestIncrementCoercion(t *testing.T) {
	tests := []struct {
		name    string
		initial interface{}
		by      *float64
		want    float64
	}{
		{"missing base defaults to 0", nil, nil, 1},
		{"numeric base", 41.0, nil, 42},
		{"explicit by", 10.0, ptr(5.0), 15},
		{"string base coerces to 0", "not a number", nil, 1},
		{"bool base coerces to 0", true, ptr(3.0), 3},
		{"object base coerces to 0", map[string]interface{}{}, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := map[string]interface{}{}
			if tt.initial != nil {
				state["n"] = tt.initial
			}

			err := Apply(plan.Action{Type: plan.ActionIncrement, Path: "n", By: tt.by}, state, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state["n"])
		})
	}
}

func TestToggleCoercion(t *testing.T) {
	state := map[string]interface{}{"flag": true, "junk": "yes"}

	require.NoError(t, Apply(plan.Action{Type: plan.ActionToggle, Path: "flag"}, state, nil, nil))
	assert.Equal(t, false, state["flag"])

	// Non-boolean base reads as false, so the toggle lands on true.
	require.NoError(t, Apply(plan.Action{Type: plan.ActionToggle, Path: "junk"}, state, nil, nil))
	assert.Equal(t, true, state["junk"])

	require.NoError(t, Apply(plan.Action{Type: plan.ActionToggle, Path: "missing"}, state, nil, nil))
	assert.Equal(t, true, state["missing"])
}

func TestPushSemantics(t *testing.T) {
	t.Run("append to existing array", func(t *testing.T) {
		state := map[string]interface{}{"items": []interface{}{"a"}}
		require.NoError(t, Apply(plan.Action{Type: plan.ActionPush, Path: "items", Value: plan.LiteralRef("b")}, state, nil, nil))
		assert.Equal(t, []interface{}{"a", "b"}, state["items"])
	})

	t.Run("non-array base becomes singleton", func(t *testing.T) {
		state := map[string]interface{}{"items": "scalar"}
		require.NoError(t, Apply(plan.Action{Type: plan.ActionPush, Path: "items", Value: plan.LiteralRef(1.0)}, state, nil, nil))
		assert.Equal(t, []interface{}{1.0}, state["items"])
	})

	t.Run("append does not alias the original backing array", func(t *testing.T) {
		original := []interface{}{"a"}
		state := map[string]interface{}{"items": original}
		require.NoError(t, Apply(plan.Action{Type: plan.ActionPush, Path: "items", Value: plan.LiteralRef("b")}, state, nil, nil))
		assert.Equal(t, []interface{}{"a"}, original)
	})

	t.Run("missing base becomes singleton", func(t *testing.T) {
		state := map[string]interface{}{}
		require.NoError(t, Apply(plan.Action{Type: plan.ActionPush, Path: "items", Value: plan.LiteralRef("x")}, state, nil, nil))
		assert.Equal(t, []interface{}{"x"}, state["items"])
	})
}

func TestResolveCrossReferences(t *testing.T) {
	state := map[string]interface{}{"count": 7.0}
	event := &plan.Event{Type: "click", Payload: map[string]interface{}{"delta": 2.0}}
	ctx := &Context{
		Values: map[string]interface{}{"planId": "p1"},
		Vars:   map[string]interface{}{"tmp": "scratch"},
	}

	tests := []struct {
		name string
		ref  *plan.ValueRef
		want interface{}
	}{
		{"literal", plan.LiteralRef("lit"), "lit"},
		{"from state", plan.FromRef("state.count"), 7.0},
		{"from event payload", plan.FromRef("event.payload.delta"), 2.0},
		{"from event type", plan.FromRef("event.type"), "click"},
		{"from context", plan.FromRef("context.planId"), "p1"},
		{"from vars", plan.FromRef("vars.tmp"), "scratch"},
		{"bare path defaults to state", plan.FromRef("count"), 7.0},
		{"unresolved yields nil", plan.FromRef("state.missing.deep"), nil},
		{"nil ref yields nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.ref, state, event, ctx))
		})
	}

	t.Run("event ref without event yields nil", func(t *testing.T) {
		assert.Nil(t, Resolve(plan.FromRef("event.payload.delta"), state, nil, ctx))
	})
}

func TestApplyAllStopsAtFailure(t *testing.T) {
	state := map[string]interface{}{}
	actions := []plan.Action{
		{Type: plan.ActionSet, Path: "a", Value: plan.LiteralRef(1.0)},
		{Type: plan.ActionType("bogus"), Path: "b"},
		{Type: plan.ActionSet, Path: "c", Value: plan.LiteralRef(3.0)},
	}

	applied, err := ApplyAll(actions, state, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1.0, state["a"])
	assert.Nil(t, state["c"])
}

func TestClone(t *testing.T) {
	original := map[string]interface{}{
		"nested": map[string]interface{}{"x": 1.0},
		"list":   []interface{}{map[string]interface{}{"y": 2.0}},
	}

	copied := Clone(original)
	Set(copied, "nested.x", 99.0)
	copied["list"].([]interface{})[0].(map[string]interface{})["y"] = 99.0

	assert.Equal(t, 1.0, Get(original, "nested.x"))
	assert.Equal(t, 2.0, original["list"].([]interface{})[0].(map[string]interface{})["y"])

	assert.NotNil(t, Clone(nil))
}

func ptr(f float64) *float64 { return &f }
