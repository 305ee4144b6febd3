package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Channel is the Postgres NOTIFY channel fed by the bookmarks trigger.
const Channel = "bookmark_changes"

const (
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
)

// Recorder receives hub metrics.
type Recorder interface {
	SubscriptionOpened()
	SubscriptionClosed()
	EventDropped()
}

type nopRecorder struct{}

func (nopRecorder) SubscriptionOpened() {}
func (nopRecorder) SubscriptionClosed() {}
func (nopRecorder) EventDropped()       {}

// Hub listens on one dedicated connection and fans bookmark changes out to
// per-user subscriptions. A subscriber that falls behind loses events
// rather than stalling the others.
type Hub struct {
	pool   *pgxpool.Pool
	buffer int
	rec    Recorder
	logger logger.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}

	listened bool // a LISTEN succeeded before; owned by the run goroutine

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewHub creates a hub. buffer is the per-subscription channel size.
func NewHub(pool *pgxpool.Pool, buffer int, rec Recorder, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Hub{
		pool:   pool,
		buffer: buffer,
		rec:    rec,
		logger: log.Named("realtime"),
		subs:   make(map[string]map[*Subscription]struct{}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the listen loop in the background until Stop or ctx is done.
// Only the first call has an effect.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-h.stopCh
		cancel()
	}()

	go func() {
		defer close(h.done)
		defer cancel()
		h.run(ctx)
	}()
	return nil
}

// Stop ends the listen loop, waits for it and closes every subscription.
// Safe to call more than once, and without Start.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	if h.started.Load() {
		<-h.done
	}

	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.closeChannel()
		}
	}
}

func (h *Hub) run(ctx context.Context) {
	wait := reconnectInitial
	for {
		established, err := h.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if established {
			wait = reconnectInitial
		}
		h.logger.Warn("change feed interrupted, reconnecting",
			logger.Duration("next_retry_in", wait),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait *= 2
		if wait > reconnectMax {
			wait = reconnectMax
		}
	}
}

// listen holds one connection in LISTEN mode until it fails.
func (h *Hub) listen(ctx context.Context) (bool, error) {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire: %w", err)
	}
	// The connection carries LISTEN state, so it is not returned to the pool.
	defer func() { _ = conn.Hijack().Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}
	h.logger.Info("change feed listening", logger.String("channel", Channel))
	if h.listened {
		// notifications sent while disconnected are lost
		h.Resync()
	}
	h.listened = true

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		h.dispatch(n.Payload)
	}
}

// Subscribe registers a subscription for userID. It is closed when ctx is
// done, when Close is called or when the hub stops.
func (h *Hub) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("subscribe: empty user id")
	}
	s := &Subscription{
		hub:    h,
		userID: userID,
		ch:     make(chan domain.Change, h.buffer),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	h.rec.SubscriptionOpened()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				s.Close()
			case <-s.closed:
			}
		}()
	}
	return s, nil
}

func (h *Hub) remove(s *Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.userID]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
	return true
}

// dispatch decodes one notification and publishes it to the owner.
func (h *Hub) dispatch(payload string) {
	userID, change, err := decode(payload)
	if err != nil {
		h.logger.Warn("ignoring malformed change notification", logger.Error(err))
		return
	}
	if change == nil {
		return
	}
	h.Publish(userID, change)
}

// Publish delivers change to every subscription of userID without blocking.
func (h *Hub) Publish(userID string, change domain.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[userID] {
		select {
		case s.ch <- change:
		default:
			h.rec.EventDropped()
			h.logger.Warn("subscriber too slow, change dropped",
				logger.String("user_id", userID))
		}
	}
}

// Resync tells every subscription that changes may have been missed.
func (h *Hub) Resync() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for userID, set := range h.subs {
		for s := range set {
			select {
			case s.ch <- domain.Resynced{}:
				n++
			default:
				h.rec.EventDropped()
				h.logger.Warn("subscriber too slow, resync dropped",
					logger.String("user_id", userID))
			}
		}
	}
	h.logger.Info("change feed resync broadcast", logger.Int("subscriptions", n))
}

type notification struct {
	Type   string           `json:"type"`
	UserID string           `json:"user_id"`
	Record *domain.Bookmark `json:"record"`
	Old    *struct {
		ID string `json:"id"`
	} `json:"old"`
}

// decode turns a trigger payload into a change. Updates are not surfaced and
// decode to a nil change.
func decode(payload string) (string, domain.Change, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", nil, err
	}
	if n.UserID == "" {
		return "", nil, fmt.Errorf("notification without user_id")
	}

	switch n.Type {
	case "INSERT":
		if n.Record == nil || n.Record.ID == "" {
			return "", nil, fmt.Errorf("insert without record")
		}
		return n.UserID, domain.Inserted{Bookmark: *n.Record}, nil
	case "DELETE":
		if n.Old == nil || n.Old.ID == "" {
			return "", nil, fmt.Errorf("delete without old id")
		}
		return n.UserID, domain.Deleted{ID: n.Old.ID}, nil
	default:
		return n.UserID, nil, nil
	}
}

// Subscription delivers one user's bookmark changes.
type Subscription struct {
	hub    *Hub
	userID string
	ch     chan domain.Change
	closed chan struct{}
	once   sync.Once
}

// Changes is closed when the subscription ends.
func (s *Subscription) Changes() <-chan domain.Change {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s.hub.remove(s) {
		s.closeChannel()
	}
}

func (s *Subscription) closeChannel() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
		s.hub.rec.SubscriptionClosed()
	})
}
