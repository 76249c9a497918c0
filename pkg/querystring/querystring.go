// Package querystring encodes filter values into URL query strings.
//
// The Codec interface is the seam between a filter binding and the query
// representation: Set and Remove take the current parameters and return the
// encoded query string with one key changed. Multi-valued parameters use
// this module's own convention of joining elements with an underscore:
//
//	?tags=go_web_api
package querystring

import (
	"net/url"
	"strings"
)

// ListSeparator joins the elements of a multi-valued parameter.
const ListSeparator = "_"

// Codec writes a single parameter into a set of query parameters.
type Codec interface {
	// Set returns params encoded with key set to value.
	Set(params url.Values, key, value string) string

	// Remove returns params encoded without key.
	Remove(params url.Values, key string) string
}

// Values is the default Codec. It never mutates the params it is given and
// encodes with url.Values.Encode, so keys come out sorted.
type Values struct{}

// Set implements Codec.
func (Values) Set(params url.Values, key, value string) string {
	out := Clone(params)
	out.Set(key, value)
	return out.Encode()
}

// Remove implements Codec.
func (Values) Remove(params url.Values, key string) string {
	out := Clone(params)
	out.Del(key)
	return out.Encode()
}

// Clone returns a deep copy of params. A nil input yields an empty, non-nil map.
func Clone(params url.Values) url.Values {
	out := make(url.Values, len(params))
	for k, vs := range params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// JoinList encodes elements as a single parameter value.
func JoinList(elems []string) string {
	return strings.Join(elems, ListSeparator)
}

// SplitList decodes a parameter value produced by JoinList.
func SplitList(raw string) []string {
	return strings.Split(raw, ListSeparator)
}

// Normalize trims s and collapses every internal run of whitespace into a
// single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
