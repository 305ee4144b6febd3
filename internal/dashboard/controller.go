package dashboard

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/index"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

// Repository is the bookmark access the controller needs.
type Repository interface {
	List(ctx context.Context, userID string) ([]domain.Bookmark, error)
	Create(ctx context.Context, userID, title, url string) (domain.Bookmark, error)
	Delete(ctx context.Context, id, userID string) error
	SubscribeToChanges(ctx context.Context, userID string) (*realtime.Subscription, error)
}

// Controller owns one dashboard tab's view of the user's bookmarks. Local
// state changes only from server-confirmed records and feed events.
type Controller struct {
	repo   Repository
	user   domain.User
	index  *index.BookmarkIndex
	logger logger.Logger

	mu      sync.Mutex
	closed  bool
	loadErr error
	sub     *realtime.Subscription

	watchers map[chan struct{}]struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	loopEnd chan struct{}
	once    sync.Once
}

// NewController creates an unmounted controller for user.
func NewController(repo Repository, user domain.User, log logger.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		repo:     repo,
		user:     user,
		index:    index.NewBookmarkIndex(),
		logger:   log.Named("dashboard").With(logger.String("user_id", user.ID)),
		watchers: make(map[chan struct{}]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		loopEnd:  make(chan struct{}),
	}
}

// Mount loads the initial list and only then opens the change
// subscription, so no event can precede the rows it refers to. A failed
// list is logged and leaves the view empty. A failed subscription is
// returned; the controller still works without live updates.
func (c *Controller) Mount(ctx context.Context) error {
	list, err := c.repo.List(ctx, c.user.ID)
	if err != nil {
		c.logger.Warn("initial bookmark list failed", logger.Error(err))
		list = nil
	}
	c.index.Replace(list)

	c.mu.Lock()
	c.loadErr = err
	c.mu.Unlock()

	sub, err := c.repo.SubscribeToChanges(c.ctx, c.user.ID)
	if err != nil {
		close(c.loopEnd)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Close()
		close(c.loopEnd)
		return nil
	}
	c.sub = sub
	c.mu.Unlock()

	go c.loop(sub)
	return nil
}

func (c *Controller) loop(sub *realtime.Subscription) {
	defer close(c.loopEnd)
	for change := range sub.Changes() {
		c.Apply(change)
	}
}

// Apply reconciles one change into local state and reports whether the
// view changed. Inserted is applied only for unknown ids; Deleted always
// removes; Resynced reloads the list from the store. Nothing is applied
// after Close.
func (c *Controller) Apply(change domain.Change) bool {
	if _, ok := change.(domain.Resynced); ok {
		return c.reload()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	var changed bool
	switch ch := change.(type) {
	case domain.Inserted:
		changed = c.index.Insert(ch.Bookmark)
	case domain.Deleted:
		changed = c.index.Remove(ch.ID)
	}
	if changed {
		c.notify()
	}
	return changed
}

// reload replaces local state with the stored list. Events that arrive
// after the resync marker were sent after the feed came back, so they still
// apply on top of the reloaded list.
func (c *Controller) reload() bool {
	list, err := c.repo.List(c.ctx, c.user.ID)
	if err != nil {
		c.logger.Warn("bookmark resync failed", logger.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.index.Replace(list)
	c.notify()
	return true
}

// Add validates and creates a bookmark, then shows the stored record. The
// store is not called when validation fails.
func (c *Controller) Add(ctx context.Context, title, url string) (domain.Bookmark, error) {
	title, url, err := domain.ValidateBookmark(title, url)
	if err != nil {
		return domain.Bookmark{}, err
	}

	b, err := c.repo.Create(ctx, c.user.ID, title, url)
	if err != nil {
		return domain.Bookmark{}, err
	}

	c.Apply(domain.Inserted{Bookmark: b})
	return b, nil
}

// Remove deletes the bookmark remotely, then locally.
func (c *Controller) Remove(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id, c.user.ID); err != nil {
		return err
	}
	c.Apply(domain.Deleted{ID: id})
	return nil
}

// Snapshot returns the bookmarks to display, newest first.
func (c *Controller) Snapshot() []domain.Bookmark {
	return c.index.List()
}

// LoadError returns the error of the initial list, if any.
func (c *Controller) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// User returns the controller's owner.
func (c *Controller) User() domain.User {
	return c.user
}

// Watch returns a channel that receives a value whenever the view changed,
// and a func that stops it. Every watcher has its own channel. Signals
// coalesce, so readers should re-read Snapshot rather than count them.
func (c *Controller) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.watchers, ch)
		c.mu.Unlock()
	}
}

// Done is closed by Close.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close releases the subscription and stops the event loop. Safe to call
// more than once.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub := c.sub
		c.mu.Unlock()

		c.cancel()
		if sub != nil {
			sub.Close()
			<-c.loopEnd
		}
	})
}

// notify must be called with c.mu held.
func (c *Controller) notify() {
	for ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
