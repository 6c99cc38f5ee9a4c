package plan

import (
	"encoding/json"
	"fmt"
)

// NodeKind discriminates UI node variants on the wire.
type NodeKind string

const (
	KindText      NodeKind = "text"
	KindElement   NodeKind = "element"
	KindComponent NodeKind = "component"
)

// Node is the closed variant over UI tree nodes. The only implementations
// are TextNode, ElementNode, and ComponentNode; traversal sites switch
// exhaustively over these three.
type Node interface {
	Kind() NodeKind
	isNode()
}

// TextNode is literal text, possibly containing {{path}} bindings that are
// interpolated against the state snapshot at render time.
type TextNode struct {
	Value string `json:"value"`
}

// ElementNode is a markup element with props and children.
type ElementNode struct {
	Tag      string                 `json:"tag"`
	Props    map[string]interface{} `json:"props,omitempty"`
	Children []Node                 `json:"children,omitempty"`
}

// ComponentNode references an external module (or the plan's own embedded
// source via the SelfModule token).
type ComponentNode struct {
	Module   string                 `json:"module"`
	Export   string                 `json:"export,omitempty"`
	Props    map[string]interface{} `json:"props,omitempty"`
	Children []Node                 `json:"children,omitempty"`
}

func (TextNode) Kind() NodeKind      { return KindText }
func (ElementNode) Kind() NodeKind   { return KindElement }
func (ComponentNode) Kind() NodeKind { return KindComponent }

func (TextNode) isNode()      {}
func (ElementNode) isNode()   {}
func (ComponentNode) isNode() {}

// Nodes marshal through the envelope so the kind discriminator survives
// round trips wherever a Node appears, not only under Plan.

func (n TextNode) MarshalJSON() ([]byte, error)      { return EncodeNode(n) }
func (n ElementNode) MarshalJSON() ([]byte, error)   { return EncodeNode(n) }
func (n ComponentNode) MarshalJSON() ([]byte, error) { return EncodeNode(n) }

// nodeEnvelope is the wire shape shared by all node kinds.
type nodeEnvelope struct {
	Kind     NodeKind               `json:"kind"`
	Value    string                 `json:"value,omitempty"`
	Tag      string                 `json:"tag,omitempty"`
	Module   string                 `json:"module,omitempty"`
	Export   string                 `json:"export,omitempty"`
	Props    map[string]interface{} `json:"props,omitempty"`
	Children []json.RawMessage      `json:"children,omitempty"`
}

// DecodeNode parses one UI node from its JSON encoding.
func DecodeNode(data []byte) (Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed node: %w", err)
	}

	children := make([]Node, 0, len(env.Children))
	for i, raw := range env.Children {
		child, err := DecodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, child)
	}

	switch env.Kind {
	case KindText:
		return TextNode{Value: env.Value}, nil
	case KindElement:
		if len(children) == 0 {
			children = nil
		}
		return ElementNode{Tag: env.Tag, Props: env.Props, Children: children}, nil
	case KindComponent:
		if len(children) == 0 {
			children = nil
		}
		return ComponentNode{Module: env.Module, Export: env.Export, Props: env.Props, Children: children}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", env.Kind)
	}
}

// EncodeNode serializes one UI node with its kind discriminator.
func EncodeNode(n Node) ([]byte, error) {
	env, err := toEnvelope(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func toEnvelope(n Node) (*nodeEnvelope, error) {
	encodeChildren := func(children []Node) ([]json.RawMessage, error) {
		if len(children) == 0 {
			return nil, nil
		}
		raws := make([]json.RawMessage, 0, len(children))
		for _, child := range children {
			raw, err := EncodeNode(child)
			if err != nil {
				return nil, err
			}
			raws = append(raws, raw)
		}
		return raws, nil
	}

	switch v := n.(type) {
	case TextNode:
		return &nodeEnvelope{Kind: KindText, Value: v.Value}, nil
	case ElementNode:
		children, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		return &nodeEnvelope{Kind: KindElement, Tag: v.Tag, Props: v.Props, Children: children}, nil
	case ComponentNode:
		children, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		return &nodeEnvelope{Kind: KindComponent, Module: v.Module, Export: v.Export, Props: v.Props, Children: children}, nil
	case nil:
		return nil, fmt.Errorf("nil node")
	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

// Walk visits every node in the tree depth-first, parents before children.
// The visitor returning false prunes the subtree.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	switch v := n.(type) {
	case TextNode:
	case ElementNode:
		for _, child := range v.Children {
			Walk(child, visit)
		}
	case ComponentNode:
		for _, child := range v.Children {
			Walk(child, visit)
		}
	}
}

// ComponentModules collects the module specifiers of every component node in
// the tree, excluding the reserved self-reference token.
func ComponentModules(root Node) []string {
	seen := make(map[string]struct{})
	var modules []string
	Walk(root, func(n Node) bool {
		if c, ok := n.(ComponentNode); ok && c.Module != SelfModule {
			if _, dup := seen[c.Module]; !dup {
				seen[c.Module] = struct{}{}
				modules = append(modules, c.Module)
			}
		}
		return true
	})
	return modules
}
