package bookmarks

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

// Store is the persistence side of the repository.
type Store interface {
	List(ctx context.Context, userID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, userID, title, url string) (domain.Bookmark, error)
	Delete(ctx context.Context, id, userID string) error
}

// Feed delivers bookmark changes for a user.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (*realtime.Subscription, error)
}

// Recorder counts repository operations by name and outcome.
type Recorder interface {
	BookmarkOp(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) BookmarkOp(string, error) {}

// Repository is the only path from the dashboard to bookmark storage.
// Every call acts as userID; the store enforces ownership.
type Repository struct {
	store  Store
	feed   Feed
	rec    Recorder
	logger logger.Logger
}

// NewRepository creates a repository. rec may be nil.
func NewRepository(store Store, feed Feed, rec Recorder, log logger.Logger) *Repository {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Repository{
		store:  store,
		feed:   feed,
		rec:    rec,
		logger: log.Named("bookmarks"),
	}
}

// List returns userID's bookmarks, newest first.
func (r *Repository) List(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	list, err := r.store.List(ctx, userID)
	r.rec.BookmarkOp("list", err)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Create validates the draft and stores it. Invalid input never reaches the
// store and is returned as a *domain.ValidationError.
func (r *Repository) Create(ctx context.Context, userID, title, url string) (domain.Bookmark, error) {
	title, url, err := domain.ValidateBookmark(title, url)
	if err != nil {
		r.rec.BookmarkOp("create_invalid", nil)
		return domain.Bookmark{}, err
	}

	b, err := r.store.Insert(ctx, userID, title, url)
	r.rec.BookmarkOp("create", err)
	if err != nil {
		return domain.Bookmark{}, err
	}

	r.logger.Debug("bookmark created",
		logger.String("user_id", userID),
		logger.String("bookmark_id", b.ID))
	return b, nil
}

// Delete removes the bookmark if userID owns it. Ids that are unknown,
// foreign or malformed are silently ignored.
func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	err := r.store.Delete(ctx, id, userID)
	r.rec.BookmarkOp("delete", err)
	return err
}

// SubscribeToChanges opens a change subscription for userID. It ends when
// ctx is done or Close is called.
func (r *Repository) SubscribeToChanges(ctx context.Context, userID string) (*realtime.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}
	return sub, nil
}
