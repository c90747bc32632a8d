package graphql

import (
	"encoding"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
)

type (
	// Verdict is returned by a Visitor to decide the fate of a leaf.
	Verdict int

	// Visitor is called once per leaf with the leaf value and its dotted path.
	Visitor func(value any, path string) Verdict
)

const (
	// Keep leaves the value untouched.
	Keep Verdict = iota
	// Discard replaces the value with nil in its parent container.
	Discard
)

// Walk visits every leaf of value depth-first. Only map[string]any and
// []any are descended into; nil, files and every other value are leaves.
// Map keys are visited in sorted order.
//
// When the visitor discards a leaf that lives inside a container, the
// entry is set to nil in place. A root leaf is reported with an empty path
// and is never modified. A nil root is a no-op.
func Walk(value any, visit Visitor) {
	if value == nil {
		return
	}
	walk(value, "", visit)
}

func walk(value any, path string, visit Visitor) Verdict {
	switch v := value.(type) {
	case QueryVariables:
		return walk(map[string]any(v), path, visit)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if walk(v[k], joinPath(path, k), visit) == Discard {
				v[k] = nil
			}
		}
		return Keep
	case []any:
		for i := range v {
			if walk(v[i], joinPath(path, strconv.Itoa(i)), visit) == Discard {
				v[i] = nil
			}
		}
		return Keep
	default:
		return visit(value, path)
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// CloneVariables returns a deep copy of value that Walk can mutate safely.
// Maps with string keys become map[string]any and slices or arrays become
// []any, whatever their element type. Files, byte slices, values with
// their own JSON or text encoding and all other values are copied by
// reference.
func CloneVariables(value any) any {
	if value == nil || IsFile(value) {
		return value
	}
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = CloneVariables(child)
		}
		return out
	case QueryVariables:
		return CloneVariables(map[string]any(v))
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = CloneVariables(child)
		}
		return out
	case []byte:
		return v
	}
	if hasOwnEncoding(value) {
		return value
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = CloneVariables(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && (rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8) {
			return value
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = CloneVariables(rv.Index(i).Interface())
		}
		return out
	}
	return value
}

func hasOwnEncoding(value any) bool {
	switch value.(type) {
	case json.Marshaler, encoding.TextMarshaler:
		return true
	}
	return false
}
