package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks/bookmarkstest"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

const (
	alice = "aaaaaaaa-0000-5000-8000-000000000001"
	bob   = "bbbbbbbb-0000-5000-8000-000000000002"
)

type opRecorder struct{ ops []string }

func (r *opRecorder) BookmarkOp(op string, _ error) { r.ops = append(r.ops, op) }

func newRepo(t *testing.T) (*Repository, *bookmarkstest.Store, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(nil, 8, nil, logger.Nop())
	store := bookmarkstest.NewStore(hub)
	return NewRepository(store, hub, nil, logger.Nop()), store, hub
}

func TestCreateValidatesBeforeStore(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		field string
	}{
		{name: "blank title", title: "   ", url: "https://go.dev", field: "title"},
		{name: "relative url", title: "Go", url: "go.dev", field: "url"},
		{name: "empty url", title: "Go", url: "", field: "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, store, _ := newRepo(t)
			_, err := repo.Create(context.Background(), alice, tt.title, tt.url)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if store.Inserts != 0 {
				t.Errorf("store reached %d times, want 0", store.Inserts)
			}
		})
	}
}

func TestCreateTrimsInput(t *testing.T) {
	repo, _, _ := newRepo(t)
	b, err := repo.Create(context.Background(), alice, "  React Docs ", " https://react.dev ")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if b.Title != "React Docs" || b.URL != "https://react.dev" || b.UserID != alice {
		t.Errorf("Create() = %+v", b)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	repo, store, _ := newRepo(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, alice, "A", "https://a.ext")
	_, _ = repo.Create(ctx, bob, "B", "https://b.ext")

	list, err := repo.List(ctx, bob)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 || list[0].UserID != bob {
		t.Errorf("bob sees %+v", list)
	}

	// bob cannot delete alice's bookmark, and gets no error either
	if err := repo.Delete(ctx, a.ID, bob); err != nil {
		t.Errorf("Delete() foreign id error = %v, want nil", err)
	}
	if store.Len() != 2 {
		t.Errorf("foreign delete removed a row")
	}

	for _, id := range []string{"missing", "", "not-a-uuid"} {
		if err := repo.Delete(ctx, id, alice); err != nil {
			t.Errorf("Delete(%q) error = %v, want nil", id, err)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		if _, err := repo.Create(ctx, alice, title, "https://"+title+".ext"); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := repo.List(ctx, alice)
	if len(list) != 3 || list[0].Title != "three" || list[2].Title != "one" {
		t.Errorf("List() order = %+v", list)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	rec := &opRecorder{}
	store := bookmarkstest.NewStore(nil)
	store.Err = errors.New("db down")
	repo := NewRepository(store, nil, rec, logger.Nop())

	if _, err := repo.List(context.Background(), alice); err == nil {
		t.Error("List() should fail")
	}
	if _, err := repo.Create(context.Background(), alice, "t", "https://t.ext"); err == nil {
		t.Error("Create() should fail")
	}
	if len(rec.ops) != 2 {
		t.Errorf("recorded ops = %v", rec.ops)
	}
}

func TestSubscribeToChanges(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := repo.SubscribeToChanges(ctx, alice)
	if err != nil {
		t.Fatalf("SubscribeToChanges() error: %v", err)
	}
	defer sub.Close()

	b, _ := repo.Create(ctx, alice, "Go", "https://go.dev")
	_, _ = repo.Create(ctx, bob, "Other", "https://other.ext")
	_ = repo.Delete(ctx, b.ID, alice)

	want := []domain.Change{domain.Inserted{Bookmark: b}, domain.Deleted{ID: b.ID}}
	for i, w := range want {
		select {
		case got := <-sub.Changes():
			if got != w {
				t.Errorf("change %d = %#v, want %#v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("change %d not delivered", i)
		}
	}

	select {
	case extra := <-sub.Changes():
		t.Errorf("unexpected change %#v", extra)
	default:
	}
}

func TestSubscribeToChangesError(t *testing.T) {
	repo, _, _ := newRepo(t)
	if _, err := repo.SubscribeToChanges(context.Background(), ""); err == nil {
		t.Error("SubscribeToChanges() with empty user should fail")
	}
}
