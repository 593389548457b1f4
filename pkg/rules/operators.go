package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/aretw0/handoff/internal/compare"
)

// operatorFunc compares a variable value with the rule operand.
// Type-incompatible operands yield false; only malformed operands are errors.
type operatorFunc func(left, right any) (bool, error)

var operators = map[string]operatorFunc{
	"equal_to": func(l, r any) (bool, error) {
		return compare.Equal(l, r), nil
	},
	"not_equal_to": func(l, r any) (bool, error) {
		return !compare.Equal(l, r), nil
	},
	"equal_to_case_insensitive": stringOp(strings.EqualFold),
	"starts_with":               stringOp(strings.HasPrefix),
	"ends_with":                 stringOp(strings.HasSuffix),
	"contains": func(l, r any) (bool, error) {
		res, _ := compare.Contains(l, r)
		return res, nil
	},
	"does_not_contain": func(l, r any) (bool, error) {
		res, ok := compare.Contains(l, r)
		return ok && !res, nil
	},
	"matches_regex": func(l, r any) (bool, error) {
		pattern, ok := r.(string)
		if !ok {
			return false, fmt.Errorf("matches_regex expects a string pattern, got %T", r)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("matches_regex: %w", err)
		}
		s, ok := l.(string)
		return ok && re.MatchString(s), nil
	},
	"greater_than": func(l, r any) (bool, error) {
		res, _ := compare.Greater(l, r)
		return res, nil
	},
	"less_than": func(l, r any) (bool, error) {
		res, _ := compare.Less(l, r)
		return res, nil
	},
	"greater_than_or_equal_to": func(l, r any) (bool, error) {
		res, ok := compare.Less(l, r)
		return ok && !res, nil
	},
	"less_than_or_equal_to": func(l, r any) (bool, error) {
		res, ok := compare.Greater(l, r)
		return ok && !res, nil
	},
	"is_true": func(l, _ any) (bool, error) {
		b, ok := l.(bool)
		return ok && b, nil
	},
	"is_false": func(l, _ any) (bool, error) {
		b, ok := l.(bool)
		return ok && !b, nil
	},
	"non_empty": func(l, _ any) (bool, error) {
		return nonEmpty(l), nil
	},
	"shares_at_least_one_element_with": func(l, r any) (bool, error) {
		return sharesElement(l, r), nil
	},
	"shares_no_elements_with": func(l, r any) (bool, error) {
		return !sharesElement(l, r), nil
	},
}

func stringOp(fn func(s, operand string) bool) operatorFunc {
	return func(l, r any) (bool, error) {
		s, okL := l.(string)
		operand, okR := r.(string)
		if !okL || !okR {
			return false, nil
		}
		return fn(s, operand), nil
	}
}

func nonEmpty(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	default:
		return true
	}
}

func sharesElement(l, r any) bool {
	left := reflect.ValueOf(l)
	right := reflect.ValueOf(r)
	if !isList(left) || !isList(right) {
		return false
	}
	for i := 0; i < right.Len(); i++ {
		if res, _ := compare.Contains(l, right.Index(i).Interface()); res {
			return true
		}
	}
	return false
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}
