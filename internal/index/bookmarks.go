package index

import (
	"container/list"
	"sync"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// BookmarkIndex is an ordered in-memory view of one user's bookmarks,
// newest first, with at most one entry per id.
type BookmarkIndex struct {
	mu       sync.RWMutex
	order    *list.List               // of domain.Bookmark, newest first
	byID     map[string]*list.Element // ID -> element in order
	loadedAt time.Time                // Timestamp of last Replace
}

// NewBookmarkIndex creates an empty index
func NewBookmarkIndex() *BookmarkIndex {
	return &BookmarkIndex{
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// Replace drops the current content and loads bookmarks. Input is expected
// newest first; duplicates after the first occurrence are ignored.
func (idx *BookmarkIndex) Replace(bookmarks []domain.Bookmark) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear and rebuild
	idx.order.Init()
	idx.byID = make(map[string]*list.Element, len(bookmarks))
	for _, b := range bookmarks {
		if _, ok := idx.byID[b.ID]; ok {
			continue
		}
		idx.byID[b.ID] = idx.order.PushBack(b)
	}
	idx.loadedAt = time.Now()
}

// Insert adds b at its place in the ordering. It reports false, leaving the
// index unchanged, when the id is already present.
func (idx *BookmarkIndex) Insert(b domain.Bookmark) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byID[b.ID]; ok {
		return false
	}

	// Changes usually arrive newest first, so the walk stops at the front.
	for e := idx.order.Front(); e != nil; e = e.Next() {
		if !e.Value.(domain.Bookmark).CreatedAt.After(b.CreatedAt) {
			idx.byID[b.ID] = idx.order.InsertBefore(b, e)
			return true
		}
	}
	idx.byID[b.ID] = idx.order.PushBack(b)
	return true
}

// Remove deletes the bookmark with id and reports whether it was present.
func (idx *BookmarkIndex) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.byID[id]
	if !ok {
		return false
	}
	idx.order.Remove(e)
	delete(idx.byID, id)
	return true
}

// Has reports whether id is present
func (idx *BookmarkIndex) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.byID[id]
	return ok
}

// List returns a copy of the bookmarks, newest first
func (idx *BookmarkIndex) List() []domain.Bookmark {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Bookmark, 0, idx.order.Len())
	for e := idx.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(domain.Bookmark))
	}
	return out
}

// Count returns the number of bookmarks in the index
func (idx *BookmarkIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.order.Len()
}

// LoadedAt returns the timestamp of the last Replace
func (idx *BookmarkIndex) LoadedAt() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.loadedAt
}
