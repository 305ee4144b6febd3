// Package bookmarkstest provides an in-memory bookmark store for tests. It
// scopes every call to the acting user and publishes changes to a hub the
// way the database trigger does.
package bookmarkstest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

// Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	rows  map[string]domain.Bookmark
	seq   int
	clock time.Time
	hub   *realtime.Hub

	// Inserts counts calls that reached Insert.
	Inserts int
	// Err, when set, is returned by every call.
	Err error
}

// NewStore creates an empty store. hub may be nil.
func NewStore(hub *realtime.Hub) *Store {
	return &Store{
		rows:  make(map[string]domain.Bookmark),
		clock: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		hub:   hub,
	}
}

func (s *Store) List(_ context.Context, userID string) ([]domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []domain.Bookmark{}
	for _, b := range s.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Insert(_ context.Context, userID, title, url string) (domain.Bookmark, error) {
	s.mu.Lock()
	s.Inserts++
	if s.Err != nil {
		s.mu.Unlock()
		return domain.Bookmark{}, s.Err
	}
	s.seq++
	s.clock = s.clock.Add(time.Second)
	b := domain.Bookmark{
		ID:        "bm-" + strconv.Itoa(s.seq),
		UserID:    userID,
		Title:     title,
		URL:       url,
		CreatedAt: s.clock,
	}
	s.rows[b.ID] = b
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(userID, domain.Inserted{Bookmark: b})
	}
	return b, nil
}

func (s *Store) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	if s.Err != nil {
		s.mu.Unlock()
		return s.Err
	}
	b, ok := s.rows[id]
	if !ok || b.UserID != userID {
		s.mu.Unlock()
		return nil
	}
	delete(s.rows, id)
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(userID, domain.Deleted{ID: id})
	}
	return nil
}

// Seed inserts a row directly, without publishing.
func (s *Store) Seed(b domain.Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.ID] = b
}

// Len returns the number of rows across all users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
