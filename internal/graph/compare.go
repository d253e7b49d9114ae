package graph

import (
	"fmt"
	"reflect"
	"strings"
)

// compareEqual reports whether a and b represent the same value, tolerating
// the usual JSON-ish numeric type drift (int vs float64).
func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b) || fmt.Sprint(a) == fmt.Sprint(b)
}

// compareOrdered returns -1/0/1 comparing a to b, treating them as numbers
// when possible and falling back to codepoint string order otherwise.
func compareOrdered(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func containsAny(list any, val any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if compareEqual(rv.Index(i).Interface(), val) {
			return true
		}
	}
	return false
}

// containsSubstringOrElement implements "contains" for both strings
// (substring) and array-valued properties (element membership).
func containsSubstringOrElement(haystack any, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	default:
		return containsAny(haystack, needle)
	}
}
