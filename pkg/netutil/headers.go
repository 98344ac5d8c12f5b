package netutil

import (
	"fmt"
	"reflect"
	"strings"
)

// CreateHeaders builds outgoing request headers from an arbitrary
// configuration value, typically the decoded `headers` section of a
// config file.
//
// The result maps lower-cased header names to stringified values. When
// isHTTP is false, or raw is not a map with string keys (nil, a string,
// a number, a slice, ...), the result is empty: custom headers only
// make sense on an HTTP transport. Nil values stringify to "null",
// matching their JSON representation; absent keys are simply never
// present. The returned map is always non-nil.
func CreateHeaders(isHTTP bool, raw any) map[string]string {
	headers := make(map[string]string)
	if !isHTTP || raw == nil {
		return headers
	}

	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return headers
	}

	iter := v.MapRange()
	for iter.Next() {
		headers[strings.ToLower(iter.Key().String())] = stringifyHeaderValue(iter.Value())
	}
	return headers
}

func stringifyHeaderValue(v reflect.Value) string {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}
