package plan

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// planEnvelope defers root decoding so the closed Node variant can be
// reconstructed from its kind discriminator.
type planEnvelope struct {
	ID             string                      `json:"id"`
	Version        int                         `json:"version"`
	SpecVersion    string                      `json:"specVersion,omitempty"`
	Root           json.RawMessage             `json:"root,omitempty"`
	Capabilities   Capabilities                `json:"capabilities"`
	State          *StateSpec                  `json:"state,omitempty"`
	Imports        []string                    `json:"imports,omitempty"`
	ModuleManifest map[string]ModuleDescriptor `json:"moduleManifest,omitempty"`
	Source         *SourceModule               `json:"source,omitempty"`
	Metadata       map[string]interface{}      `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes a plan, reconstructing the node tree.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var env planEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	var root Node
	if len(env.Root) > 0 {
		var err error
		root, err = DecodeNode(env.Root)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
	}

	*p = Plan{
		ID:             env.ID,
		Version:        env.Version,
		SpecVersion:    env.SpecVersion,
		Root:           root,
		Capabilities:   env.Capabilities,
		State:          env.State,
		Imports:        env.Imports,
		ModuleManifest: env.ModuleManifest,
		Source:         env.Source,
		Metadata:       env.Metadata,
	}
	return nil
}

// MarshalJSON encodes a plan with its node tree discriminators.
func (p Plan) MarshalJSON() ([]byte, error) {
	env := planEnvelope{
		ID:             p.ID,
		Version:        p.Version,
		SpecVersion:    p.SpecVersion,
		Capabilities:   p.Capabilities,
		State:          p.State,
		Imports:        p.Imports,
		ModuleManifest: p.ModuleManifest,
		Source:         p.Source,
		Metadata:       p.Metadata,
	}
	if p.Root != nil {
		raw, err := EncodeNode(p.Root)
		if err != nil {
			return nil, fmt.Errorf("root: %w", err)
		}
		env.Root = raw
	}
	return json.Marshal(env)
}

// Parse decodes and validates a plan document. Structural failures return a
// ValidationError naming the offending field.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := sonic.Unmarshal(data, &p); err != nil {
		return nil, &ValidationError{Field: "(document)", Reason: err.Error()}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode serializes a plan back to JSON.
func Encode(p *Plan) ([]byte, error) {
	return sonic.Marshal(p)
}
