// Package filter binds one URL query parameter to one piece of typed state.
//
// A Binding keeps a local value that updates immediately on Set, and writes
// it to the URL once it has stopped changing for the configured delay. Each
// write also drops the "page" parameter, so changing a filter always resets
// pagination. In the other direction, when the router reports a new value
// for the parameter, the binding coerces it into its own type and adopts it.
//
// Example:
//
//	// Search box: replace history, 300ms quiet period
//	q := filter.New("q", "", router, filter.Replace, filter.Delay(300*time.Millisecond))
//	q.Set("red  shoes") // ?q=red+shoes after 300ms
//
//	// Multi-select: ?tags=go_web
//	tags := filter.New("tags", []string{}, router)
//
//	// Sort order that disappears from the URL when set back to its default
//	sort := filter.New("sort", "relevance", router, filter.RemoveWhen("relevance"))
package filter

import (
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/vango-dev/filterbind/pkg/debounce"
	"github.com/vango-dev/filterbind/pkg/navigation"
	"github.com/vango-dev/filterbind/pkg/querystring"
)

// PageParam is removed from the query string on every commit.
const PageParam = "page"

// Router is the navigation surface a Binding needs.
//
// Update must apply fn's result atomically with respect to other updates,
// and treat an empty href as "no navigation". *navigation.History
// implements it.
type Router interface {
	Current() navigation.Location
	Update(fn func(cur navigation.Location) (href string, mode navigation.Mode, opts navigation.Options)) error
	Subscribe(fn func(navigation.Location)) (cancel func())
}

// Commit describes one navigation issued by a Binding.
type Commit struct {
	Name    string
	Href    string
	Mode    navigation.Mode
	Removed bool
	Value   string
}

// Reconcile describes a URL value adopted into local state.
type Reconcile struct {
	Name string
	Raw  string
}

// Binding synchronizes a value of type T with the query parameter Name.
// All methods are safe for concurrent use.
type Binding[T any] struct {
	name      string
	initial   T
	router    Router
	cfg       config
	logger    *slog.Logger
	debouncer *debounce.Debouncer
	cancelSub func()

	mu        sync.Mutex
	value     T
	debounced T
	closed    bool

	// last observed value of the parameter
	param    string
	hasParam bool

	// value this binding last wrote, so the router echoing it back is not
	// mistaken for an external change
	echo    string
	hasEcho bool
}

// New creates a Binding for the parameter name with the given initial value.
//
// If the router's current location already carries the parameter, the
// binding starts from the coerced URL value instead of initial. Creating a
// binding never navigates.
func New[T any](name string, initial T, router Router, opts ...Option) *Binding[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binding[T]{
		name:      name,
		initial:   initial,
		router:    router,
		cfg:       cfg,
		logger:    logger.With("component", "filter", "filter", name),
		debouncer: debounce.New(cfg.delay),
		value:     initial,
		debounced: initial,
	}

	if raw, ok := router.Current().Get(name); ok {
		b.param, b.hasParam = raw, true
		if raw != "" {
			if v, ok := coerce(raw, initial); ok {
				b.value = v
				b.debounced = v
			}
		}
	}

	b.cancelSub = router.Subscribe(b.reconcile)
	return b
}

// Name returns the query parameter key.
func (b *Binding[T]) Name() string {
	return b.name
}

// Mode returns the navigation mode used for commits.
func (b *Binding[T]) Mode() navigation.Mode {
	return b.cfg.mode
}

// Delay returns the debounce delay.
func (b *Binding[T]) Delay() time.Duration {
	return b.cfg.delay
}

// Value returns the current local value.
func (b *Binding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Debounced returns the value as of the last settled quiet period.
func (b *Binding[T]) Debounced() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debounced
}

// Set updates the local value and restarts the debounce timer. It does not
// touch the URL; the commit happens once the value settles.
func (b *Binding[T]) Set(v T) {
	b.mu.Lock()
	changed := b.assignLocked(v)
	b.mu.Unlock()

	if changed {
		b.debouncer.Trigger(b.settle)
	}
}

// Update atomically reads and updates the value.
func (b *Binding[T]) Update(fn func(T) T) {
	b.mu.Lock()
	changed := b.assignLocked(fn(b.value))
	b.mu.Unlock()

	if changed {
		b.debouncer.Trigger(b.settle)
	}
}

// Reset sets the value back to the one the binding was created with.
func (b *Binding[T]) Reset() {
	b.Set(b.initial)
}

// Pending reports whether a change is waiting for its quiet period.
func (b *Binding[T]) Pending() bool {
	return b.debouncer.Pending()
}

// Flush commits a pending change immediately.
func (b *Binding[T]) Flush() {
	b.debouncer.Flush()
}

// Cancel drops a pending change. The local value is kept but never committed
// unless it changes again.
func (b *Binding[T]) Cancel() {
	b.debouncer.Cancel()
}

// Close stops the binding. Pending changes are dropped and later location
// changes are ignored.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.debouncer.Cancel()
	b.cancelSub()
}

func (b *Binding[T]) assignLocked(v T) bool {
	if b.closed || reflect.DeepEqual(b.value, v) {
		return false
	}
	b.value = v
	return true
}

// settle runs when the quiet period ends.
func (b *Binding[T]) settle() {
	b.mu.Lock()
	if b.closed || reflect.DeepEqual(b.value, b.debounced) {
		b.mu.Unlock()
		return
	}
	v := b.value
	b.debounced = v
	b.mu.Unlock()

	b.commit(v)
}

// commit writes v into the current location and navigates there. The
// read of the current location and the navigation happen as one router
// update, so bindings committing at the same time never drop each other's
// parameters.
func (b *Binding[T]) commit(v T) {
	value, remove := encode(v, b.cfg.remove, b.cfg.hasRemove)
	opts := navigation.Options{Scroll: false}

	var href string
	var skipped bool
	err := b.router.Update(func(cur navigation.Location) (string, navigation.Mode, navigation.Options) {
		params := querystring.Clone(cur.Query)
		params.Del(PageParam)

		var qs string
		if remove {
			qs = b.cfg.codec.Remove(params, b.name)
		} else {
			qs = b.cfg.codec.Set(params, b.name, value)
		}
		href = navigation.JoinHref(cur.Path, qs)

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			skipped = true
			return "", b.cfg.mode, opts
		}
		if href != cur.Href() {
			b.echo, b.hasEcho = value, !remove
		}
		return href, b.cfg.mode, opts
	})
	if err != nil {
		b.fail(err)
		return
	}
	if skipped {
		return
	}

	b.logger.Debug("filter committed", "href", href, "mode", b.cfg.mode.String(), "removed", remove)
	if b.cfg.onCommit != nil {
		b.cfg.onCommit(Commit{
			Name:    b.name,
			Href:    href,
			Mode:    b.cfg.mode,
			Removed: remove,
			Value:   value,
		})
	}
}

func (b *Binding[T]) fail(err error) {
	b.mu.Lock()
	b.hasEcho = false
	b.mu.Unlock()

	if b.cfg.onError != nil {
		b.cfg.onError(err)
		return
	}
	b.logger.Error("filter navigation failed", "error", err)
}

// reconcile adopts an externally changed parameter value. An absent or
// empty parameter leaves local state untouched.
func (b *Binding[T]) reconcile(loc navigation.Location) {
	raw, ok := loc.Get(b.name)

	b.mu.Lock()
	if b.closed || (ok == b.hasParam && raw == b.param) {
		b.mu.Unlock()
		return
	}
	b.param, b.hasParam = raw, ok

	if ok && b.hasEcho && raw == b.echo {
		b.hasEcho = false
		b.mu.Unlock()
		return
	}
	b.hasEcho = false

	if !ok || raw == "" {
		b.mu.Unlock()
		return
	}

	v, coerced := coerce(raw, b.debounced)
	if !coerced {
		b.mu.Unlock()
		b.logger.Debug("filter value not representable", "raw", raw)
		return
	}

	changed := b.assignLocked(v)
	b.mu.Unlock()

	if b.cfg.onReconcile != nil {
		b.cfg.onReconcile(Reconcile{Name: b.name, Raw: raw})
	}
	// Adopted values go through the same debounce as typed ones, so the
	// resulting commit resets pagination.
	if changed {
		b.debouncer.Trigger(b.settle)
	}
}
