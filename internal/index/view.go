package index

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

// View is the ordered collection of bookmarks shown to the user.
//
// Records are kept newest first (domain.Newer) and IDs are unique at all
// times. Writes come from the sync core only; readers get copies through
// Snapshot or Watch.
type View struct {
	mu        sync.RWMutex
	items     []domain.Bookmark
	watchers  map[int]chan []domain.Bookmark
	nextWatch int
	lastReset time.Time // last wholesale replacement (initial listing or refetch)
	closed    bool
}

// NewView creates an empty view
func NewView() *View {
	return &View{
		watchers: make(map[int]chan []domain.Bookmark),
	}
}

// Insert adds b at its ordered position.
// It is a no-op returning false when b.ID is already present.
func (v *View) Insert(b domain.Bookmark) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || v.indexOf(b.ID) >= 0 {
		return false
	}
	v.insertSorted(b)
	v.notifyLocked()
	return true
}

// Remove deletes the record with the given ID. Unknown IDs are a no-op.
func (v *View) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return false
	}
	i := v.indexOf(id)
	if i < 0 {
		return false
	}
	v.items = slices.Delete(v.items, i, i+1)
	v.notifyLocked()
	return true
}

// Replace substitutes the record oldID with b.
//
// When oldID is absent nothing happens, so a record removed while its
// create was in flight is never brought back. When b.ID already exists
// (the change feed delivered it first) the existing entry is updated and
// oldID dropped, keeping IDs unique.
func (v *View) Replace(oldID string, b domain.Bookmark) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return false
	}
	i := v.indexOf(oldID)
	if i < 0 {
		return false
	}
	v.items = slices.Delete(v.items, i, i+1)
	if j := v.indexOf(b.ID); j >= 0 {
		v.items = slices.Delete(v.items, j, j+1)
	}
	v.insertSorted(b)
	v.notifyLocked()
	return true
}

// Upsert inserts b, or updates the fields of the existing record with the
// same ID. The record moves if its CreatedAt changed.
func (v *View) Upsert(b domain.Bookmark) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	if i := v.indexOf(b.ID); i >= 0 {
		if sameRecord(v.items[i], b) {
			return
		}
		if v.items[i].CreatedAt.Equal(b.CreatedAt) {
			v.items[i] = b
			v.notifyLocked()
			return
		}
		v.items = slices.Delete(v.items, i, i+1)
	}
	v.insertSorted(b)
	v.notifyLocked()
}

// Reset replaces the whole collection. Duplicate IDs keep their first
// occurrence.
func (v *View) Reset(records []domain.Bookmark) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	seen := make(map[string]struct{}, len(records))
	items := make([]domain.Bookmark, 0, len(records))
	for _, b := range records {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		items = append(items, b)
	}
	slices.SortFunc(items, domain.Compare)

	v.items = items
	v.lastReset = time.Now()
	v.notifyLocked()
}

// Get returns the record with the given ID.
func (v *View) Get(id string) (domain.Bookmark, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i := v.indexOf(id); i >= 0 {
		return v.items[i], true
	}
	return domain.Bookmark{}, false
}

// Snapshot returns a copy of the collection, newest first.
func (v *View) Snapshot() []domain.Bookmark {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.snapshotLocked()
}

// Len returns the number of records
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.items)
}

// LastReset returns when the collection was last replaced wholesale.
func (v *View) LastReset() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.lastReset
}

// Watch returns a channel receiving the latest snapshot after every change.
// The current snapshot is delivered immediately. Slow readers only ever
// see the most recent snapshot. The returned cancel func closes the
// channel and may be called more than once.
func (v *View) Watch() (<-chan []domain.Bookmark, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan []domain.Bookmark, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}

	id := v.nextWatch
	v.nextWatch++
	v.watchers[id] = ch
	ch <- v.snapshotLocked()

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if w, ok := v.watchers[id]; ok {
			delete(v.watchers, id)
			close(w)
		}
	}
}

// Close drops every record and closes all watch channels.
// Later mutations are ignored.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	v.items = nil
	for id, ch := range v.watchers {
		delete(v.watchers, id)
		close(ch)
	}
}

// sameRecord compares field by field; time.Time is compared as an instant.
func sameRecord(a, b domain.Bookmark) bool {
	return a.ID == b.ID &&
		a.Owner == b.Owner &&
		a.Title == b.Title &&
		a.URL == b.URL &&
		a.Pending == b.Pending &&
		a.CreatedAt.Equal(b.CreatedAt)
}

func (v *View) indexOf(id string) int {
	return slices.IndexFunc(v.items, func(b domain.Bookmark) bool { return b.ID == id })
}

func (v *View) insertSorted(b domain.Bookmark) {
	i := sort.Search(len(v.items), func(i int) bool {
		return !domain.Newer(v.items[i], b)
	})
	v.items = slices.Insert(v.items, i, b)
}

func (v *View) snapshotLocked() []domain.Bookmark {
	out := make([]domain.Bookmark, len(v.items))
	copy(out, v.items)
	return out
}

// notifyLocked pushes the current snapshot to every watcher, replacing
// any snapshot the watcher has not consumed yet. v.mu must be held.
func (v *View) notifyLocked() {
	if len(v.watchers) == 0 {
		return
	}
	snap := v.snapshotLocked()
	for _, ch := range v.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
