package navigation

import (
	"log/slog"
	"sort"
	"sync"
)

// Entry is one position in a History.
type Entry struct {
	Location Location
	Mode     Mode
	Scroll   bool
}

// History is an in-memory session history. It is safe for concurrent use.
//
// Subscribers are invoked after the lock is released, on the goroutine that
// caused the change, so a subscriber may navigate again.
type History struct {
	mu      sync.Mutex
	entries []Entry
	index   int

	subs   map[int]func(Location)
	nextID int

	logger *slog.Logger
}

// NewHistory creates a history whose only entry is initial.
func NewHistory(initial string) (*History, error) {
	loc, err := ParseLocation(initial)
	if err != nil {
		return nil, err
	}
	return &History{
		entries: []Entry{{Location: loc, Mode: Push}},
		subs:    make(map[int]func(Location)),
		logger:  slog.Default().With("component", "history"),
	}, nil
}

// SetLogger replaces the history's logger.
func (h *History) SetLogger(logger *slog.Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// Push navigates to href, adding an entry. Pushing the current href is a no-op.
func (h *History) Push(href string, opts Options) error {
	return h.Navigate(href, Push, opts)
}

// Replace navigates to href, overwriting the current entry.
func (h *History) Replace(href string, opts Options) error {
	return h.Navigate(href, Replace, opts)
}

// Visit records a navigation the client already performed, such as a link
// click. It behaves like Push.
func (h *History) Visit(href string) error {
	return h.Navigate(href, Push, Options{Scroll: true})
}

// Navigate moves to href with the given mode.
func (h *History) Navigate(href string, mode Mode, opts Options) error {
	return h.Update(func(Location) (string, Mode, Options) {
		return href, mode, opts
	})
}

// Update derives the next navigation from the current location and applies
// it atomically: no other navigation can land between fn reading cur and the
// result being applied. fn runs with the history locked and must not call
// back into h. Returning an empty href leaves the history unchanged.
func (h *History) Update(fn func(cur Location) (href string, mode Mode, opts Options)) error {
	h.mu.Lock()
	cur := h.entries[h.index].Location
	href, mode, opts := fn(cur.Clone())
	if href == "" {
		h.mu.Unlock()
		return nil
	}
	loc, err := ParseLocation(href)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if cur.Href() == loc.Href() {
		h.mu.Unlock()
		return nil
	}

	entry := Entry{Location: loc, Mode: mode, Scroll: opts.Scroll}
	if mode == Replace {
		h.entries[h.index] = entry
	} else {
		h.entries = append(h.entries[:h.index+1], entry)
		h.index++
	}
	logger := h.logger
	subs := h.subscribersLocked()
	h.mu.Unlock()

	logger.Debug("navigate", "href", loc.Href(), "mode", mode.String(), "scroll", opts.Scroll)
	h.notify(subs, loc)
	return nil
}

// Back moves one entry back. It reports false at the first entry.
func (h *History) Back() bool {
	return h.step(-1)
}

// Forward moves one entry forward. It reports false at the last entry.
func (h *History) Forward() bool {
	return h.step(1)
}

func (h *History) step(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	loc := h.entries[next].Location
	subs := h.subscribersLocked()
	h.mu.Unlock()

	h.notify(subs, loc)
	return true
}

// Current returns a copy of the current location.
func (h *History) Current() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index].Location.Clone()
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of all entries and the current index.
func (h *History) Entries() ([]Entry, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		e.Location = e.Location.Clone()
		out[i] = e
	}
	return out, h.index
}

// Subscribe registers fn to run on every location change.
// The returned function unsubscribes; calling it more than once is safe.
func (h *History) Subscribe(fn func(Location)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// subscribersLocked returns subscribers in registration order.
func (h *History) subscribersLocked() []func(Location) {
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(Location), len(ids))
	for i, id := range ids {
		out[i] = h.subs[id]
	}
	return out
}

func (h *History) notify(subs []func(Location), loc Location) {
	for _, fn := range subs {
		fn(loc.Clone())
	}
}
