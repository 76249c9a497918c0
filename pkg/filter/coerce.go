package filter

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/vango-dev/filterbind/pkg/querystring"
)

// encode returns the parameter value for v, or remove=true when the
// parameter should be dropped instead.
func encode(v any, sentinel any, hasSentinel bool) (value string, remove bool) {
	rv := reflect.ValueOf(v)

	if isSequence(rv) {
		if rv.Len() == 0 {
			return "", true
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatValue(rv.Index(i))
		}
		return querystring.JoinList(parts), false
	}

	if isFalsy(rv) {
		return "", true
	}
	if hasSentinel && reflect.DeepEqual(v, sentinel) {
		return "", true
	}

	s := querystring.Normalize(formatValue(rv))
	if s == "" {
		return "", true
	}
	return s, false
}

func isSequence(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	k := rv.Kind()
	return k == reflect.Slice || k == reflect.Array
}

// isFalsy mirrors the falsy values of a dynamically typed UI: zero numbers,
// NaN, empty strings, false and nil. Non-nil structs, maps and pointers
// count as set.
func isFalsy(rv reflect.Value) bool {
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Struct:
		return false
	}
	return rv.IsZero()
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return formatValue(v.Elem())
	}
	if v.CanInterface() {
		return fmt.Sprint(v.Interface())
	}
	return ""
}

// coerce converts a raw query value into T. The expected type is T itself,
// or for interface types the dynamic type of current. It reports false
// when the value cannot be represented in T at all.
func coerce[T any](raw string, current T) (T, bool) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()

	if t.Kind() == reflect.Interface {
		v := decodeDynamic(raw, reflect.ValueOf(&current).Elem().Elem())
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(t) {
			return zero, false
		}
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out.Interface().(T), true
	}

	out := reflect.New(t).Elem()
	if !decodeInto(out, raw) {
		return zero, false
	}
	return out.Interface().(T), true
}

// decodeDynamic handles untyped state: sequences split into strings, the
// literal "true" becomes a bool, numbers stay numbers, anything else is
// kept as the raw string.
func decodeDynamic(raw string, current reflect.Value) any {
	if isSequence(current) {
		return querystring.SplitList(raw)
	}
	if raw == "true" {
		return true
	}
	if current.IsValid() {
		switch current.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return parseNumber(raw)
		}
	}
	return raw
}

func decodeInto(v reflect.Value, raw string) bool {
	switch v.Kind() {
	case reflect.Slice:
		parts := querystring.SplitList(raw)
		s := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			decodeElem(s.Index(i), p)
		}
		v.Set(s)
		return true
	case reflect.Array:
		parts := querystring.SplitList(raw)
		for i := 0; i < v.Len() && i < len(parts); i++ {
			decodeElem(v.Index(i), parts[i])
		}
		return true
	case reflect.Bool:
		if raw == "true" {
			v.SetBool(true)
			return true
		}
		b, _ := strconv.ParseBool(strings.TrimSpace(raw))
		v.SetBool(b)
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := toInt(parseNumber(raw))
		if v.OverflowInt(n) {
			n = 0
		}
		v.SetInt(n)
		return true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := toInt(parseNumber(raw))
		if n < 0 || v.OverflowUint(uint64(n)) {
			n = 0
		}
		v.SetUint(uint64(n))
		return true
	case reflect.Float32, reflect.Float64:
		v.SetFloat(parseNumber(raw))
		return true
	case reflect.String:
		v.SetString(raw)
		return true
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return false
		}
		v.Set(reflect.ValueOf(decodeDynamic(raw, reflect.Value{})))
		return true
	}
	return false
}

// decodeElem decodes one list element. Interface elements keep the raw
// string, as list values are never reinterpreted.
func decodeElem(v reflect.Value, raw string) {
	if v.Kind() == reflect.Interface && v.NumMethod() == 0 {
		v.Set(reflect.ValueOf(raw))
		return
	}
	decodeInto(v, raw)
}

// parseNumber is lenient: surrounding whitespace is ignored, blank input is
// zero and anything unparsable is NaN.
func parseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// toInt truncates f toward zero. NaN and infinities become 0 because Go
// integers have no representation for them.
func toInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}
