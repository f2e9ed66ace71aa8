// Package internal holds small helpers shared across resily packages.
package internal

import "reflect"

// IsTypedNil reports whether v is nil, or is a non-nil interface wrapping a
// nil pointer/slice/map/func/chan (a "typed nil") — the case a plain
// `v == nil` check misses.
func IsTypedNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
