// Package store keeps registered plans and their committed state snapshots.
//
// Persistence proper is an external collaborator; this package defines the
// register/get/list contract the engine consumes and ships an in-memory
// implementation. Committed snapshots are the rollback point for failed or
// timed-out executions: the orchestrator commits only after a run succeeds.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/webllm/renderify/internal/engine"
	"github.com/webllm/renderify/internal/plan"
)

var (
	ErrNotFound     = errors.New("plan not found")
	ErrStaleVersion = errors.New("plan version must increase")
)

// Store is the persistence contract the engine consumes.
type Store interface {
	// Register adds a plan version. Versions are monotonic per id.
	Register(p *plan.Plan) error
	// Get returns the latest version of a plan.
	Get(id string) (*plan.Plan, error)
	// GetVersion returns one specific version.
	GetVersion(id string, version int) (*plan.Plan, error)
	// List returns the latest version of every plan, ordered by id.
	List() []*plan.Plan

	// State returns the committed snapshot for a plan id. A plan that
	// never committed returns its initial state.
	State(id string) (map[string]interface{}, error)
	// CommitState replaces the committed snapshot.
	CommitState(id string, snapshot map[string]interface{}) error
}

// Memory is the in-memory Store.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]map[int]*plan.Plan
	latest   map[string]int
	states   map[string]map[string]interface{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		versions: make(map[string]map[int]*plan.Plan),
		latest:   make(map[string]int),
		states:   make(map[string]map[string]interface{}),
	}
}

// Register adds a plan version, rejecting non-increasing versions.
func (m *Memory) Register(p *plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.latest[p.ID]; ok && p.Version <= current {
		return fmt.Errorf("%w: id %q has version %d, got %d", ErrStaleVersion, p.ID, current, p.Version)
	}

	if m.versions[p.ID] == nil {
		m.versions[p.ID] = make(map[int]*plan.Plan)
	}
	m.versions[p.ID][p.Version] = p
	m.latest[p.ID] = p.Version
	return nil
}

// Get returns the latest version of a plan.
func (m *Memory) Get(id string) (*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	version, ok := m.latest[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.versions[id][version], nil
}

// GetVersion returns one specific version of a plan.
func (m *Memory) GetVersion(id string, version int) (*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.versions[id][version]
	if !ok {
		return nil, fmt.Errorf("%w: %q version %d", ErrNotFound, id, version)
	}
	return p, nil
}

// List returns the latest version of every plan, ordered by id.
func (m *Memory) List() []*plan.Plan {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.latest))
	for id := range m.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	plans := make([]*plan.Plan, 0, len(ids))
	for _, id := range ids {
		plans = append(plans, m.versions[id][m.latest[id]])
	}
	return plans
}

// State returns a copy of the committed snapshot, falling back to the
// latest plan version's initial state.
func (m *Memory) State(id string) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if snapshot, ok := m.states[id]; ok {
		return engine.Clone(snapshot), nil
	}

	version, ok := m.latest[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p := m.versions[id][version]
	if p.State != nil {
		return engine.Clone(p.State.Initial), nil
	}
	return map[string]interface{}{}, nil
}

// CommitState replaces the committed snapshot with a defensive copy.
func (m *Memory) CommitState(id string, snapshot map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.latest[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	m.states[id] = engine.Clone(snapshot)
	return nil
}
