package engine

import (
	"github.com/webllm/renderify/internal/plan"
)

// Context carries the per-invocation bags cross-references can read from.
type Context struct {
	// Values backs "context.<path>" references (plan id, invocation id, ...).
	Values map[string]interface{}
	// Vars backs "vars.<path>" references, a scratch bag for action chains.
	Vars map[string]interface{}
}

// Resolve evaluates a value reference against the current state, the
// triggering event, and the execution context. Unresolved references yield
// nil rather than an error: plan authors may reference optional fields.
func Resolve(ref *plan.ValueRef, state map[string]interface{}, event *plan.Event, ctx *Context) interface{} {
	if ref == nil {
		return nil
	}
	switch ref.Source {
	case plan.SourceLiteral:
		return ref.Literal
	case plan.SourceState:
		return Get(state, ref.Path)
	case plan.SourceEvent:
		if event == nil {
			return nil
		}
		return Get(eventBag(event), ref.Path)
	case plan.SourceContext:
		if ctx == nil {
			return nil
		}
		return Get(ctx.Values, ref.Path)
	case plan.SourceVars:
		if ctx == nil {
			return nil
		}
		return Get(ctx.Vars, ref.Path)
	default:
		return nil
	}
}

func eventBag(event *plan.Event) map[string]interface{} {
	bag := map[string]interface{}{"type": event.Type}
	if event.Payload != nil {
		bag["payload"] = event.Payload
	}
	return bag
}
