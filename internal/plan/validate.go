package plan

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError names the first field that failed structural validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: field %q: %s", e.Field, e.Reason)
}

// forbiddenSegments are path segments that would let a plan reach the object
// prototype chain of a hosting realm. Rejected everywhere paths appear.
var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"prototype":   {},
	"constructor": {},
}

// ForbiddenSegment reports whether a path segment is a prototype-pollution
// vector.
func ForbiddenSegment(seg string) bool {
	_, bad := forbiddenSegments[seg]
	return bad
}

// CheckPath rejects dotted paths containing forbidden segments. The empty
// path is legal (treated as a no-op by the engine).
func CheckPath(path string) error {
	if path == "" {
		return nil
	}
	for _, seg := range strings.Split(path, ".") {
		if ForbiddenSegment(seg) {
			return fmt.Errorf("path segment %q is forbidden", seg)
		}
	}
	return nil
}

// Validate checks the full plan document against its structural invariants.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if p.Version < 1 {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("must be >= 1, got %d", p.Version)}
	}
	if p.Root == nil {
		return &ValidationError{Field: "root", Reason: "must be present"}
	}
	if err := validateNode(p.Root, "root"); err != nil {
		return err
	}
	if err := p.Capabilities.validate(); err != nil {
		return err
	}
	if p.State != nil {
		if err := p.State.validate(); err != nil {
			return err
		}
	}
	for specifier, desc := range p.ModuleManifest {
		if desc.URL == "" {
			return &ValidationError{
				Field:  "moduleManifest." + specifier,
				Reason: "resolved URL must not be empty",
			}
		}
	}
	if p.Source != nil && p.Source.Code == "" {
		return &ValidationError{Field: "source.code", Reason: "must not be empty"}
	}
	return nil
}

func validateNode(n Node, field string) error {
	switch v := n.(type) {
	case TextNode:
		return nil
	case ElementNode:
		if v.Tag == "" {
			return &ValidationError{Field: field + ".tag", Reason: "must not be empty"}
		}
		for i, child := range v.Children {
			if err := validateNode(child, fmt.Sprintf("%s.children[%d]", field, i)); err != nil {
				return err
			}
		}
		return nil
	case ComponentNode:
		if v.Module == "" {
			return &ValidationError{Field: field + ".module", Reason: "component must reference a module"}
		}
		for i, child := range v.Children {
			if err := validateNode(child, fmt.Sprintf("%s.children[%d]", field, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown node type %T", n)}
	}
}

func (c *Capabilities) validate() error {
	checkCeiling := func(field string, v *int, min int) error {
		if v == nil {
			return nil
		}
		if *v < min {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("must be >= %d, got %d", min, *v)}
		}
		if float64(*v) > math.MaxInt32 {
			return &ValidationError{Field: field, Reason: "exceeds representable range"}
		}
		return nil
	}

	if err := checkCeiling("capabilities.maxImports", c.MaxImports, 0); err != nil {
		return err
	}
	if err := checkCeiling("capabilities.maxComponentInvocations", c.MaxComponentInvocations, 0); err != nil {
		return err
	}
	if err := checkCeiling("capabilities.maxExecutionMs", c.MaxExecutionMs, 1); err != nil {
		return err
	}

	switch c.ExecutionProfile {
	case "", "standard", "isolated":
	default:
		return &ValidationError{
			Field:  "capabilities.executionProfile",
			Reason: fmt.Sprintf("must be \"standard\" or \"isolated\", got %q", c.ExecutionProfile),
		}
	}
	return nil
}

func (s *StateSpec) validate() error {
	for event, actions := range s.Transitions {
		for i, action := range actions {
			field := fmt.Sprintf("state.transitions.%s[%d]", event, i)
			switch action.Type {
			case ActionSet, ActionIncrement, ActionToggle, ActionPush:
			default:
				return &ValidationError{Field: field + ".type", Reason: fmt.Sprintf("unknown action type %q", action.Type)}
			}
			if err := CheckPath(action.Path); err != nil {
				return &ValidationError{Field: field + ".path", Reason: err.Error()}
			}
			if action.Value != nil && action.Value.Source != SourceLiteral {
				if err := CheckPath(action.Value.Path); err != nil {
					return &ValidationError{Field: field + ".value", Reason: err.Error()}
				}
			}
		}
	}
	return nil
}
