package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCounterPlan(t *testing.T) {
	data := []byte(`{
		"id": "counter_plan",
		"version": 1,
		"specVersion": "1.1",
		"capabilities": {"domWrite": true},
		"root": {
			"kind": "element",
			"tag": "div",
			"children": [{"kind": "text", "value": "count = {{state.count}}"}]
		},
		"state": {
			"initial": {"count": 0},
			"transitions": {
				"increment": [{"type": "increment", "path": "count", "by": 1}]
			}
		}
	}`)

	p, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "counter_plan", p.ID)
	assert.Equal(t, 1, p.Version)
	assert.True(t, p.Capabilities.DOMWrite)

	root, ok := p.Root.(ElementNode)
	require.True(t, ok)
	assert.Equal(t, "div", root.Tag)
	require.Len(t, root.Children, 1)

	text, ok := root.Children[0].(TextNode)
	require.True(t, ok)
	assert.Equal(t, "count = {{state.count}}", text.Value)

	require.NotNil(t, p.State)
	actions := p.State.Transitions["increment"]
	require.Len(t, actions, 1)
	assert.Equal(t, ActionIncrement, actions[0].Type)
	assert.Equal(t, "count", actions[0].Path)
	require.NotNil(t, actions[0].By)
	assert.Equal(t, 1.0, *actions[0].By)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{
			name:  "missing id",
			json:  `{"version": 1, "root": {"kind": "text", "value": "x"}}`,
			field: "id",
		},
		{
			name:  "zero version",
			json:  `{"id": "p", "version": 0, "root": {"kind": "text", "value": "x"}}`,
			field: "version",
		},
		{
			name:  "missing root",
			json:  `{"id": "p", "version": 1}`,
			field: "root",
		},
		{
			name: "component without module",
			json: `{"id": "p", "version": 1, "root": {"kind": "component", "module": ""}}`,
			// empty module is reported on the root node
			field: "root.module",
		},
		{
			name: "proto path in transition",
			json: `{"id": "p", "version": 1, "root": {"kind": "text", "value": "x"},
				"state": {"transitions": {"e": [{"type": "set", "path": "__proto__.polluted", "value": 1}]}}}`,
			field: "state.transitions.e[0].path",
		},
		{
			name: "empty manifest url",
			json: `{"id": "p", "version": 1, "root": {"kind": "text", "value": "x"},
				"moduleManifest": {"react": {"url": ""}}}`,
			field: "moduleManifest.react",
		},
		{
			name: "negative execution ceiling",
			json: `{"id": "p", "version": 1, "root": {"kind": "text", "value": "x"},
				"capabilities": {"maxExecutionMs": 0}}`,
			field: "capabilities.maxExecutionMs",
		},
		{
			name: "unknown action type",
			json: `{"id": "p", "version": 1, "root": {"kind": "text", "value": "x"},
				"state": {"transitions": {"e": [{"type": "delete", "path": "x"}]}}}`,
			field: "state.transitions.e[0].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDecodeNodeUnknownKind(t *testing.T) {
	_, err := DecodeNode([]byte(`{"kind": "portal"}`))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	original := &Plan{
		ID:      "rt",
		Version: 3,
		Root: ElementNode{
			Tag: "section",
			Children: []Node{
				TextNode{Value: "hello"},
				ComponentNode{Module: "chart-lib", Export: "BarChart"},
			},
		},
		Capabilities: Capabilities{AllowedModules: []string{"chart-lib"}},
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, original.ID, decoded.ID)

	root, ok := decoded.Root.(ElementNode)
	require.True(t, ok)
	require.Len(t, root.Children, 2)
	assert.Equal(t, TextNode{Value: "hello"}, root.Children[0])

	comp, ok := root.Children[1].(ComponentNode)
	require.True(t, ok)
	assert.Equal(t, "chart-lib", comp.Module)
}

func TestValueRefUnmarshal(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		source ValueSource
		path   string
	}{
		{"state ref", `{"$from": "state.user.name"}`, SourceState, "user.name"},
		{"event ref", `{"$from": "event.payload.delta"}`, SourceEvent, "payload.delta"},
		{"context ref", `{"$from": "context.planId"}`, SourceContext, "planId"},
		{"vars ref", `{"$from": "vars.tmp"}`, SourceVars, "tmp"},
		{"bare path defaults to state", `{"$from": "count"}`, SourceState, "count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref ValueRef
			require.NoError(t, ref.UnmarshalJSON([]byte(tt.json)))
			assert.Equal(t, tt.source, ref.Source)
			assert.Equal(t, tt.path, ref.Path)
		})
	}

	t.Run("literal object stays literal", func(t *testing.T) {
		var ref ValueRef
		require.NoError(t, ref.UnmarshalJSON([]byte(`{"a": 1, "b": 2}`)))
		assert.Equal(t, SourceLiteral, ref.Source)
		assert.Len(t, ref.Literal, 2)
	})

	t.Run("literal scalar", func(t *testing.T) {
		var ref ValueRef
		require.NoError(t, ref.UnmarshalJSON([]byte(`42`)))
		assert.Equal(t, SourceLiteral, ref.Source)
		assert.Equal(t, 42.0, ref.Literal)
	})
}

func TestNormalizeSpecVersion(t *testing.T) {
	assert.Equal(t, "1.0", NormalizeSpecVersion("1.0"))
	assert.Equal(t, "1.1", NormalizeSpecVersion("1.1"))
	assert.Equal(t, SpecVersionDefault, NormalizeSpecVersion("0.9-experimental"))
	assert.Equal(t, SpecVersionDefault, NormalizeSpecVersion(""))
}

func TestComponentModulesExcludesSelf(t *testing.T) {
	root := ElementNode{
		Tag: "div",
		Children: []Node{
			ComponentNode{Module: "chart-lib"},
			ComponentNode{Module: SelfModule},
			ComponentNode{Module: "chart-lib"},
			ComponentNode{Module: "date-picker"},
		},
	}

	modules := ComponentModules(root)
	assert.Equal(t, []string{"chart-lib", "date-picker"}, modules)
}
