// Package render turns a plan's UI tree into sanitized HTML markup.
//
// Text nodes may carry {{state.path}} bindings interpolated against the
// snapshot at render time; literal text is entity-escaped and interpolated
// values pass through a strict sanitizer, so neither the plan's text nor its
// state can inject markup. Component nodes render as
// placeholder mounts carrying their resolved module URL for the client-side
// loader.
package render

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/webllm/renderify/internal/engine"
	"github.com/webllm/renderify/internal/plan"
)

// ErrTooManyComponents is returned when rendering exceeds the component
// invocation ceiling.
var ErrTooManyComponents = fmt.Errorf("component invocation ceiling exceeded")

var bindingPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_$][a-zA-Z0-9_.$]*)\s*\}\}`)

// tagPattern admits well-formed element names only. Anything else would let a
// plan smuggle attributes or markup through the tag field.
var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// ErrInvalidTag is returned when an element node carries a malformed tag name.
var ErrInvalidTag = fmt.Errorf("invalid element tag")

// Renderer walks node trees into markup.
type Renderer struct {
	sanitizer *bluemonday.Policy
	// maxComponents bounds component mounts per render. Zero means no cap.
	maxComponents int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithComponentCeiling caps component mounts per render.
func WithComponentCeiling(max int) Option {
	return func(r *Renderer) { r.maxComponents = max }
}

// New creates a renderer. Interpolated values are stripped of all markup.
func New(opts ...Option) *Renderer {
	r := &Renderer{sanitizer: bluemonday.StrictPolicy()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the rendered markup plus render statistics.
type Result struct {
	HTML       string
	Components int
}

// Render produces markup for a tree against a state snapshot. The manifest
// supplies resolved URLs for component mounts.
func (r *Renderer) Render(root plan.Node, state map[string]interface{}, manifest map[string]plan.ModuleDescriptor) (*Result, error) {
	var b strings.Builder
	count := 0
	if err := r.renderNode(&b, root, state, manifest, &count); err != nil {
		return nil, err
	}
	return &Result{HTML: b.String(), Components: count}, nil
}

func (r *Renderer) renderNode(b *strings.Builder, n plan.Node, state map[string]interface{}, manifest map[string]plan.ModuleDescriptor, count *int) error {
	switch v := n.(type) {
	case plan.TextNode:
		b.WriteString(r.interpolate(v.Value, state))
		return nil

	case plan.ElementNode:
		if !tagPattern.MatchString(v.Tag) {
			return fmt.Errorf("%w: %q", ErrInvalidTag, v.Tag)
		}
		b.WriteByte('<')
		b.WriteString(v.Tag)
		writeAttrs(b, v.Props)
		b.WriteByte('>')
		for _, child := range v.Children {
			if err := r.renderNode(b, child, state, manifest, count); err != nil {
				return err
			}
		}
		b.WriteString("</")
		b.WriteString(v.Tag)
		b.WriteByte('>')
		return nil

	case plan.ComponentNode:
		*count++
		if r.maxComponents > 0 && *count > r.maxComponents {
			return fmt.Errorf("%w: limit %d", ErrTooManyComponents, r.maxComponents)
		}

		b.WriteString(`<div data-component="`)
		b.WriteString(html.EscapeString(v.Module))
		b.WriteByte('"')
		if v.Export != "" {
			b.WriteString(` data-export="`)
			b.WriteString(html.EscapeString(v.Export))
			b.WriteByte('"')
		}
		if desc, ok := manifest[v.Module]; ok && v.Module != plan.SelfModule {
			b.WriteString(` data-module-url="`)
			b.WriteString(html.EscapeString(desc.URL))
			b.WriteByte('"')
			if desc.Integrity != "" {
				b.WriteString(` data-integrity="`)
				b.WriteString(html.EscapeString(desc.Integrity))
				b.WriteByte('"')
			}
		}
		writeAttrs(b, v.Props)
		b.WriteByte('>')
		for _, child := range v.Children {
			if err := r.renderNode(b, child, state, manifest, count); err != nil {
				return err
			}
		}
		b.WriteString("</div>")
		return nil

	default:
		return fmt.Errorf("unknown node type %T", n)
	}
}

// interpolate substitutes {{path}} bindings with state values, stripping
// any markup the values carry. The literal text around the bindings is
// escaped first: binding paths contain no escapable characters, so escaping
// cannot break the pattern.
func (r *Renderer) interpolate(text string, state map[string]interface{}) string {
	out := bindingPattern.ReplaceAllStringFunc(html.EscapeString(text), func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		path = strings.TrimPrefix(path, "state.")
		value := engine.Get(state, path)
		if value == nil {
			return ""
		}
		return r.sanitizer.Sanitize(formatValue(value))
	})
	return out
}

// writeAttrs renders scalar props as attributes in sorted order. Event
// handler props (onClick and friends) become data-on-* hooks for the
// client-side dispatcher rather than inline script.
func writeAttrs(b *strings.Builder, props map[string]interface{}) {
	if len(props) == 0 {
		return
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, ok := props[k].(string)
		if !ok {
			if num, isNum := props[k].(float64); isNum {
				value = formatValue(num)
			} else if flag, isBool := props[k].(bool); isBool && flag {
				b.WriteByte(' ')
				b.WriteString(html.EscapeString(k))
				continue
			} else {
				continue
			}
		}

		name := k
		if len(k) > 2 && strings.HasPrefix(k, "on") {
			name = "data-on-" + strings.ToLower(k[2:])
		}
		b.WriteByte(' ')
		b.WriteString(html.EscapeString(name))
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(value))
		b.WriteByte('"')
	}
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
