package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webllm/renderify/internal/plan"
)

func textPlan(id string, version int) *plan.Plan {
	return &plan.Plan{
		ID:      id,
		Version: version,
		Root:    plan.TextNode{Value: "x"},
		State: &plan.StateSpec{
			Initial: map[string]interface{}{"count": 0.0},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	s := NewMemory()

	require.NoError(t, s.Register(textPlan("a", 1)))
	require.NoError(t, s.Register(textPlan("a", 2)))
	require.NoError(t, s.Register(textPlan("b", 1)))

	latest, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	v1, err := s.GetVersion("a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetVersion("a", 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterRejectsStaleVersion(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Register(textPlan("a", 2)))

	assert.ErrorIs(t, s.Register(textPlan("a", 2)), ErrStaleVersion)
	assert.ErrorIs(t, s.Register(textPlan("a", 1)), ErrStaleVersion)
	assert.NoError(t, s.Register(textPlan("a", 3)))
}

func TestRegisterValidates(t *testing.T) {
	s := NewMemory()
	err := s.Register(&plan.Plan{ID: "", Version: 1, Root: plan.TextNode{Value: "x"}})

	var verr *plan.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestListOrdersByID(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Register(textPlan("zeta", 1)))
	require.NoError(t, s.Register(textPlan("alpha", 1)))

	plans := s.List()
	require.Len(t, plans, 2)
	assert.Equal(t, "alpha", plans[0].ID)
	assert.Equal(t, "zeta", plans[1].ID)
}

func TestStateFallsBackToInitial(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Register(textPlan("a", 1)))

	state, err := s.State("a")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"count": 0.0}, state)

	_, err = s.State("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitStateIsCopied(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Register(textPlan("a", 1)))

	snapshot := map[string]interface{}{"count": 5.0}
	require.NoError(t, s.CommitState("a", snapshot))

	// Mutating the caller's map must not affect the committed snapshot.
	snapshot["count"] = 99.0

	state, err := s.State("a")
	require.NoError(t, err)
	assert.Equal(t, 5.0, state["count"])

	// Mutating a returned snapshot must not affect the store either.
	state["count"] = 77.0
	again, err := s.State("a")
	require.NoError(t, err)
	assert.Equal(t, 5.0, again["count"])

	assert.ErrorIs(t, s.CommitState("missing", snapshot), ErrNotFound)
}
