package datefmt

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheSize bounds the memo when callers pass a non-positive size.
const DefaultCacheSize = 1024

// Formatter memoizes Format for one layout, keyed by millisecond timestamp.
// Once maxItems is reached the oldest inserted entry is evicted.
type Formatter struct {
	layout   string
	maxItems int

	mu        sync.Mutex
	evictList *list.List
	items     map[int64]*list.Element
}

type memoEntry struct {
	key   int64
	value string
}

// NewFormatter builds a Formatter for layout; an empty layout uses DefaultLayout.
func NewFormatter(layout string, maxItems int) *Formatter {
	if layout == "" {
		layout = DefaultLayout
	}
	if maxItems <= 0 {
		maxItems = DefaultCacheSize
	}
	return &Formatter{
		layout:    layout,
		maxItems:  maxItems,
		evictList: list.New(),
		items:     make(map[int64]*list.Element),
	}
}

// Layout returns the template this Formatter expands.
func (f *Formatter) Layout() string { return f.layout }

// Format returns the expansion of the layout for t.
func (f *Formatter) Format(t time.Time) string {
	key := t.UnixMilli()

	f.mu.Lock()
	if ent, ok := f.items[key]; ok {
		v := ent.Value.(*memoEntry).value
		f.mu.Unlock()
		return v
	}
	f.mu.Unlock()

	value := Format(t, f.layout)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; ok {
		return value
	}
	f.items[key] = f.evictList.PushFront(&memoEntry{key: key, value: value})
	if f.evictList.Len() > f.maxItems {
		f.removeOldest()
	}
	return value
}

// Len reports the number of memoized timestamps.
func (f *Formatter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evictList.Len()
}

func (f *Formatter) removeOldest() {
	ent := f.evictList.Back()
	if ent == nil {
		return
	}
	f.evictList.Remove(ent)
	delete(f.items, ent.Value.(*memoEntry).key)
}
