package engine

import (
	"strconv"
	"strings"

	"github.com/webllm/renderify/internal/plan"
)

// Split breaks a dotted path into segments, rejecting prototype-pollution
// vectors. The empty path yields an empty segment list.
func Split(path string) ([]string, bool) {
	if path == "" {
		return nil, true
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if plan.ForbiddenSegment(seg) {
			return nil, false
		}
	}
	return segments, true
}

// Get reads a value at a dotted path. Missing paths, forbidden segments, and
// the empty path all read as nil.
func Get(obj map[string]interface{}, path string) interface{} {
	segments, ok := Split(path)
	if !ok || len(segments) == 0 {
		return nil
	}
	var current interface{} = obj
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[seg]
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

// Set writes a value at a dotted path, creating intermediate objects as
// needed. Non-object intermediates are replaced. Forbidden segments and the
// empty path make the write a no-op rather than an error.
func Set(obj map[string]interface{}, path string, value interface{}) {
	segments, ok := Split(path)
	if !ok || len(segments) == 0 {
		return
	}
	current := obj
	for _, seg := range segments[:len(segments)-1] {
		next, exists := current[seg].(map[string]interface{})
		if !exists {
			next = make(map[string]interface{})
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// Clone deep-copies a JSON-valued snapshot. Scalars are shared (immutable),
// maps and slices are copied recursively.
func Clone(snapshot map[string]interface{}) map[string]interface{} {
	if snapshot == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return Clone(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
