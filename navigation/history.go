package navigation

import "sync"

// Navigator replaces the current location.
type Navigator interface {
	Replace(path string)
}

// History is an in-memory Navigator that records every location it was sent to.
type History struct {
	mu      sync.Mutex
	entries []string
}

func NewHistory(initial string) *History {
	return &History{entries: []string{Clean(initial)}}
}

func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Clean(path))
}

// Current returns the last recorded location.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Entries returns every recorded location, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}
