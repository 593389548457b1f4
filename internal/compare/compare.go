// Package compare holds the loose value comparisons shared by condition predicates
// and the rule engine. Values usually come from JSON or YAML, so numbers may arrive
// as any Go numeric type or as json.Number.
package compare

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Number converts v to float64 when it holds a numeric value.
// Numeric strings are accepted so "42" from a transport compares with 42 from a rule.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// isNumeric is stricter than Number: strings do not count.
func isNumeric(v any) bool {
	if _, ok := v.(string); ok {
		return false
	}
	_, ok := Number(v)
	return ok
}

// Equal compares two values, treating numbers of different Go types as equal
// when their values match.
func Equal(a, b any) bool {
	if isNumeric(a) || isNumeric(b) {
		fa, okA := Number(a)
		fb, okB := Number(b)
		if okA && okB {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// Greater reports a > b. ok is false when either side is not numeric.
func Greater(a, b any) (result bool, ok bool) {
	fa, okA := Number(a)
	fb, okB := Number(b)
	if !okA || !okB {
		return false, false
	}
	return fa > fb, true
}

// Less reports a < b. ok is false when either side is not numeric.
func Less(a, b any) (result bool, ok bool) {
	fa, okA := Number(a)
	fb, okB := Number(b)
	if !okA || !okB {
		return false, false
	}
	return fa < fb, true
}

// Contains reports whether container holds needle.
// Strings use substring matching, slices element matching and maps key matching.
// ok is false when the container type does not support membership.
func Contains(container, needle any) (result bool, ok bool) {
	switch c := container.(type) {
	case string:
		s, isStr := needle.(string)
		if !isStr {
			s = fmt.Sprint(needle)
		}
		return strings.Contains(c, s), true
	case nil:
		return false, false
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if Equal(rv.Index(i).Interface(), needle) {
				return true, true
			}
		}
		return false, true
	case reflect.Map:
		key := reflect.ValueOf(needle)
		if !key.IsValid() || !key.Type().AssignableTo(rv.Type().Key()) {
			return false, true
		}
		return rv.MapIndex(key).IsValid(), true
	default:
		return false, false
	}
}

// Lookup walks a dot-separated path through nested maps and slices.
// "data.items.0.name" selects the name of the first item.
func Lookup(root any, path string) (any, bool) {
	if path == "" {
		return root, root != nil
	}
	current := root
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			rv := reflect.ValueOf(current)
			if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if !v.IsValid() {
				return nil, false
			}
			current = v.Interface()
		}
	}
	return current, true
}
