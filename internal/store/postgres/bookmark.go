package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// BookmarkStore persists bookmarks. Every call runs in its own transaction
// with app.user_id set, so the row-level security policy scopes reads and
// writes to the acting user.
type BookmarkStore struct {
	pool *pgxpool.Pool
}

// NewBookmarkStore creates a store on top of pool.
func NewBookmarkStore(pool *pgxpool.Pool) *BookmarkStore {
	return &BookmarkStore{pool: pool}
}

const (
	listBookmarksSQL = `
		SELECT id::text, user_id::text, title, url, created_at
		FROM bookmarks
		ORDER BY created_at DESC, id DESC`

	insertBookmarkSQL = `
		INSERT INTO bookmarks (user_id, title, url)
		VALUES ($1, $2, $3)
		RETURNING id::text, user_id::text, title, url, created_at`

	deleteBookmarkSQL = `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`

	setUserSQL = `SELECT set_config('app.user_id', $1, true)`
)

// List returns the user's bookmarks, newest first. A malformed user id owns
// nothing and yields an empty list.
func (s *BookmarkStore) List(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []domain.Bookmark{}, nil
	}
	var out []domain.Bookmark
	err := s.asUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listBookmarksSQL)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Bookmark, error) {
			return scanBookmark(r)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	if out == nil {
		out = []domain.Bookmark{}
	}
	return out, nil
}

// Insert stores a bookmark owned by userID and returns the stored row.
// title and url are expected to be validated already.
func (s *BookmarkStore) Insert(ctx context.Context, userID, title, url string) (domain.Bookmark, error) {
	var b domain.Bookmark
	err := s.asUser(ctx, userID, func(tx pgx.Tx) error {
		var err error
		b, err = scanBookmark(tx.QueryRow(ctx, insertBookmarkSQL, userID, title, url))
		return err
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}
	return b, nil
}

// Delete removes the bookmark if userID owns it. Unknown, foreign or
// malformed ids match nothing and are not an error.
func (s *BookmarkStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}
	err := s.asUser(ctx, userID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, deleteBookmarkSQL, id, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// Ping is used by the readiness check.
func (s *BookmarkStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *BookmarkStore) asUser(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setUserSQL, userID); err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		return fn(tx)
	})
}

func scanBookmark(row pgx.Row) (domain.Bookmark, error) {
	var b domain.Bookmark
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt)
	return b, err
}
