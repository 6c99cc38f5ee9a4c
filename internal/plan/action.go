package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType discriminates declarative state mutations.
type ActionType string

const (
	ActionSet       ActionType = "set"
	ActionIncrement ActionType = "increment"
	ActionToggle    ActionType = "toggle"
	ActionPush      ActionType = "push"
)

// Action is one declarative state mutation within a transition.
type Action struct {
	Type  ActionType `json:"type"`
	Path  string     `json:"path"`
	Value *ValueRef  `json:"value,omitempty"` // set, push
	By    *float64   `json:"by,omitempty"`    // increment, default +1
}

// ValueSource discriminates where a cross-referenced value is read from.
type ValueSource int

const (
	SourceLiteral ValueSource = iota
	SourceState
	SourceEvent
	SourceContext
	SourceVars
)

// ValueRef is either a literal JSON value or a cross-reference of the form
// {"$from": "state.some.path"}. Bare $from paths default to state.
type ValueRef struct {
	Source  ValueSource
	Literal interface{}
	Path    string
}

// LiteralRef wraps a plain value.
func LiteralRef(v interface{}) *ValueRef {
	return &ValueRef{Source: SourceLiteral, Literal: v}
}

// FromRef builds a cross-reference from a "$from" expression.
func FromRef(expr string) *ValueRef {
	source, path := splitFrom(expr)
	return &ValueRef{Source: source, Path: path}
}

func splitFrom(expr string) (ValueSource, string) {
	prefix, rest, ok := strings.Cut(expr, ".")
	if !ok {
		// A bare name like "count" reads from state.
		return SourceState, expr
	}
	switch prefix {
	case "state":
		return SourceState, rest
	case "event":
		return SourceEvent, rest
	case "context":
		return SourceContext, rest
	case "vars":
		return SourceVars, rest
	default:
		return SourceState, expr
	}
}

// fromExpr reconstructs the wire expression for a cross-reference.
func (v *ValueRef) fromExpr() string {
	switch v.Source {
	case SourceState:
		return "state." + v.Path
	case SourceEvent:
		return "event." + v.Path
	case SourceContext:
		return "context." + v.Path
	case SourceVars:
		return "vars." + v.Path
	default:
		return v.Path
	}
}

// UnmarshalJSON accepts either {"$from": "..."} or any literal JSON value.
func (v *ValueRef) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if raw, ok := probe["$from"]; ok && len(probe) == 1 {
			var expr string
			if err := json.Unmarshal(raw, &expr); err != nil {
				return fmt.Errorf("$from must be a string: %w", err)
			}
			v.Source, v.Path = splitFrom(expr)
			v.Literal = nil
			return nil
		}
	}

	var literal interface{}
	if err := json.Unmarshal(data, &literal); err != nil {
		return err
	}
	v.Source = SourceLiteral
	v.Literal = literal
	return nil
}

// MarshalJSON emits {"$from": ...} for cross-references, the literal otherwise.
func (v ValueRef) MarshalJSON() ([]byte, error) {
	if v.Source == SourceLiteral {
		return json.Marshal(v.Literal)
	}
	return json.Marshal(map[string]string{"$from": v.fromExpr()})
}
