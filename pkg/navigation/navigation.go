// Package navigation models the browser location a filter binding reads
// and writes.
//
// History is an in-memory router: it keeps a stack of entries, supports
// push and replace navigation, back and forward traversal, and notifies
// subscribers whenever the current location changes. The server keeps one
// History per websocket session and mirrors it to the browser.
package navigation

import (
	"net/url"
	"strings"

	"github.com/vango-dev/filterbind/internal/errors"
)

// Mode determines how a navigation affects history.
type Mode int

const (
	// Push adds a new history entry.
	Push Mode = iota

	// Replace overwrites the current history entry.
	Replace
)

// String returns "push" or "replace".
func (m Mode) String() string {
	if m == Replace {
		return "replace"
	}
	return "push"
}

// ParseMode parses "push" or "replace". The empty string is Push.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "push":
		return Push, nil
	case "replace":
		return Replace, nil
	}
	return Push, errors.New("F014").WithDetailf("mode %q", s)
}

// Options modifies a single navigation.
type Options struct {
	// Scroll asks the client to scroll to the top after navigating.
	Scroll bool
}

// Location is a path plus its decoded query parameters.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses a relative href such as "/products?q=shoes".
// Scheme and host, if present, are discarded.
func ParseLocation(href string) (Location, error) {
	u, err := url.Parse(href)
	if err != nil {
		return Location{}, errors.New("F001").WithDetailf("%q", href).Wrap(err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Location{}, errors.New("F001").WithDetailf("%q", href).Wrap(err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{Path: path, Query: q}, nil
}

// Href returns the location as "path?query", or just "path" when the query
// is empty.
func (l Location) Href() string {
	qs := l.Query.Encode()
	if qs == "" {
		return l.Path
	}
	return l.Path + "?" + qs
}

// Get returns the first value for key and whether the key is present.
func (l Location) Get(key string) (string, bool) {
	vs, ok := l.Query[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Clone returns a copy that shares no maps or slices with l.
func (l Location) Clone() Location {
	q := make(url.Values, len(l.Query))
	for k, vs := range l.Query {
		q[k] = append([]string(nil), vs...)
	}
	return Location{Path: l.Path, Query: q}
}

// JoinHref joins a path and an encoded query string.
func JoinHref(path, query string) string {
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return path
	}
	return path + "?" + query
}
