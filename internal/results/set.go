package results

import (
	"errors"
	"fmt"
	"sync"

	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

// ErrNoSelection is returned when a selection number is outside the result list.
var ErrNoSelection = errors.New("no such result")

// Set is one user's paged view over a search's results. It is safe for
// concurrent use: paging controls and the in-flight search refresh it
// from different goroutines.
type Set struct {
	mu       sync.RWMutex
	query    string
	items    []Item
	page     int
	pageSize int
}

// Option configures a Set.
type Option func(*Set)

// WithPageSize overrides the default of ten items per page.
func WithPageSize(n int) Option {
	return func(s *Set) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewSet aggregates groups into a new Set positioned on the first page.
func NewSet(query string, groups []slskd.SearchResponse, opts ...Option) *Set {
	s := &Set{
		query:    query,
		items:    Aggregate(groups),
		pageSize: constants.ResultsPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns the search text the set was built from.
func (s *Set) Query() string {
	return s.query
}

// PageSize returns the number of items per page.
func (s *Set) PageSize() int {
	return s.pageSize
}

// Items returns a copy of all items in order.
func (s *Set) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Item returns the n-th item, counting from 1 as shown to the user.
func (s *Set) Item(n int) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 1 || n > len(s.items) {
		return Item{}, false
	}
	return s.items[n-1], true
}

// Select is Item with an error describing the valid range.
func (s *Set) Select(n int) (Item, error) {
	it, ok := s.Item(n)
	if !ok {
		return Item{}, fmt.Errorf("%w: pick a number between 1 and %d", ErrNoSelection, s.Len())
	}
	return it, nil
}

// Page returns the current page index, starting at 0.
func (s *Set) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// PageCount returns the number of pages; 0 for an empty set.
func (s *Set) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageCountLocked()
}

func (s *Set) pageCountLocked() int {
	return (len(s.items) + s.pageSize - 1) / s.pageSize
}

// SetPage moves to page n, clamped to the valid range, and returns the new index.
func (s *Set) SetPage(n int) int {
	return s.move(func(int, int) int { return n })
}

func (s *Set) move(to func(page, count int) int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = to(s.page, s.pageCountLocked())
	s.clampLocked()
	return s.page
}

func (s *Set) clampLocked() {
	last := s.pageCountLocked() - 1
	if s.page > last {
		s.page = last
	}
	if s.page < 0 {
		s.page = 0
	}
}

// First moves to the first page.
func (s *Set) First() int { return s.SetPage(0) }

// Prev moves back one page.
func (s *Set) Prev() int {
	return s.move(func(page, _ int) int { return page - 1 })
}

// Next moves forward one page.
func (s *Set) Next() int {
	return s.move(func(page, _ int) int { return page + 1 })
}

// Last moves to the last page.
func (s *Set) Last() int {
	return s.move(func(_, count int) int { return count - 1 })
}

// PageItems returns the items on the current page together with the
// selection number of the first one.
func (s *Set) PageItems() (first int, items []Item) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := s.page * s.pageSize
	if start >= len(s.items) {
		return 0, nil
	}
	end := start + s.pageSize
	if end > len(s.items) {
		end = len(s.items)
	}
	items = make([]Item, end-start)
	copy(items, s.items[start:end])
	return start + 1, items
}

// Refresh re-aggregates from a newer snapshot of the same search and replaces
// the items in place. The current page is kept, clamped to the new page
// count. It reports whether the number of items changed.
func (s *Set) Refresh(groups []slskd.SearchResponse) bool {
	items := Aggregate(groups)

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := len(items) != len(s.items)
	s.items = items
	s.clampLocked()
	return changed
}
