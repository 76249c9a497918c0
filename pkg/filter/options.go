package filter

import (
	"log/slog"
	"time"

	"github.com/vango-dev/filterbind/pkg/navigation"
	"github.com/vango-dev/filterbind/pkg/querystring"
)

// DefaultDelay is the debounce delay used when no Delay option is given.
const DefaultDelay = 500 * time.Millisecond

// Option configures a Binding.
type Option interface {
	apply(*config)
}

type config struct {
	mode      navigation.Mode
	delay     time.Duration
	remove    any
	hasRemove bool
	codec     querystring.Codec
	logger    *slog.Logger

	onError     func(error)
	onCommit    func(Commit)
	onReconcile func(Reconcile)
}

func defaultConfig() config {
	return config{
		mode:  navigation.Push,
		delay: DefaultDelay,
		codec: querystring.Values{},
	}
}

// Navigation mode options.
var (
	// Push creates a new history entry on every commit (default).
	Push Option = modeOption{mode: navigation.Push}

	// Replace overwrites the current history entry on every commit.
	Replace Option = modeOption{mode: navigation.Replace}
)

type modeOption struct {
	mode navigation.Mode
}

func (o modeOption) apply(c *config) {
	c.mode = o.mode
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) {
	f(c)
}

// WithMode sets the navigation mode from a value, for callers that read it
// from configuration.
func WithMode(m navigation.Mode) Option {
	return modeOption{mode: m}
}

// Delay sets how long the value must stay unchanged before it is committed.
// Zero or less commits synchronously inside Set.
func Delay(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.delay = d
	})
}

// RemoveWhen makes a committed value equal to v remove the parameter
// instead of writing it. Equality is reflect.DeepEqual, so v must have the
// binding's type to ever match.
//
// Example:
//
//	sort := filter.New("sort", "relevance", router, filter.RemoveWhen("relevance"))
func RemoveWhen(v any) Option {
	return optionFunc(func(c *config) {
		c.remove = v
		c.hasRemove = true
	})
}

// WithCodec replaces the query-string codec.
func WithCodec(codec querystring.Codec) Option {
	return optionFunc(func(c *config) {
		c.codec = codec
	})
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = logger
	})
}

// OnError receives navigation errors. Without it they are logged.
func OnError(fn func(error)) Option {
	return optionFunc(func(c *config) {
		c.onError = fn
	})
}

// OnCommit is called after every successful navigation issued by the binding.
func OnCommit(fn func(Commit)) Option {
	return optionFunc(func(c *config) {
		c.onCommit = fn
	})
}

// OnReconcile is called whenever a changed URL value is applied to local state.
func OnReconcile(fn func(Reconcile)) Option {
	return optionFunc(func(c *config) {
		c.onReconcile = fn
	})
}
