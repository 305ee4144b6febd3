package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

const (
	// DefaultAttachTimeout is how long a tab may stay without an event stream
	DefaultAttachTimeout = 30 * time.Second
	// DefaultSweepInterval is how often the janitor runs
	DefaultSweepInterval = 15 * time.Second
)

type tab struct {
	ctrl    *Controller
	owner   string
	since   time.Time // mount time, then last detach time
	streams int
}

// Registry maps browser tab ids to their mounted controllers. A janitor
// closes controllers whose tab never attached an event stream, or whose
// stream went away, once attachTimeout has passed.
type Registry struct {
	mu   sync.Mutex
	tabs map[string]*tab

	logger        logger.Logger
	attachTimeout time.Duration
	interval      time.Duration
	now           func() time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewRegistry creates a registry. Zero durations use the defaults.
func NewRegistry(log logger.Logger, attachTimeout, interval time.Duration) *Registry {
	if attachTimeout <= 0 {
		attachTimeout = DefaultAttachTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Registry{
		tabs:          make(map[string]*tab),
		logger:        log.Named("tabs"),
		attachTimeout: attachTimeout,
		interval:      interval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Register stores a mounted controller and returns its new tab id.
func (r *Registry) Register(ctrl *Controller) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[id] = &tab{ctrl: ctrl, owner: ctrl.User().ID, since: r.now()}
	return id
}

// Lookup returns the controller for tabID if userID owns it.
func (r *Registry) Lookup(tabID, userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[tabID]
	if !ok || t.owner != userID {
		return nil, false
	}
	return t.ctrl, true
}

// Attach marks an event stream as connected to tabID. Every successful
// Attach must be paired with Detach.
func (r *Registry) Attach(tabID, userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[tabID]
	if !ok || t.owner != userID {
		return nil, false
	}
	t.streams++
	return t.ctrl, true
}

// Detach marks an event stream as gone. The controller is kept for
// attachTimeout so a reconnecting stream finds it again.
func (r *Registry) Detach(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[tabID]
	if !ok {
		return
	}
	if t.streams > 0 {
		t.streams--
	}
	if t.streams == 0 {
		t.since = r.now()
	}
}

// Count returns the number of mounted tabs.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Start begins the periodic sweep
func (r *Registry) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the sweep and closes every controller.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*tab)
	r.mu.Unlock()

	for _, t := range tabs {
		t.ctrl.Close()
	}
}

// Sweep closes idle controllers and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var idle []*Controller
	for id, t := range r.tabs {
		if t.streams > 0 || now.Sub(t.since) < r.attachTimeout {
			continue
		}
		idle = append(idle, t.ctrl)
		delete(r.tabs, id)
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}

	if len(idle) > 0 {
		r.logger.Debug("closed idle dashboard tabs",
			logger.Int("closed", len(idle)),
			logger.Int("remaining", r.Count()))
	}
	return len(idle)
}
