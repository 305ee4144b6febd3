package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
)

// ImportSync periodically imports a Homepage file into one user's
// bookmarks. New entries are created; nothing is ever deleted, so a user
// who removes an imported bookmark gets it back on the next run only if it
// is still in the file.
type ImportSync struct {
	loader   *homepage.Loader
	importer *homepage.Importer
	userID   string
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewImportSync creates the sync job. interval <= 0 runs the import once.
func NewImportSync(loader *homepage.Loader, importer *homepage.Importer, userID string, log logger.Logger, interval time.Duration) *ImportSync {
	return &ImportSync{
		loader:   loader,
		importer: importer,
		userID:   userID,
		logger:   log.Named("import-sync"),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a first import synchronously, then the periodic one.
func (s *ImportSync) Start(ctx context.Context) error {
	// Load immediately on start
	if _, err := s.Run(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}
	if s.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					s.logger.Error("failed to import bookmarks", logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the periodic import
func (s *ImportSync) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run loads the file and imports it once.
func (s *ImportSync) Run(ctx context.Context) (homepage.Result, error) {
	drafts, err := s.loader.Load()
	if err != nil {
		return homepage.Result{}, fmt.Errorf("failed to load homepage file: %w", err)
	}
	return s.importer.Import(ctx, s.userID, drafts)
}
