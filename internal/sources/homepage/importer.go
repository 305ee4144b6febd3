package homepage

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Repository is the bookmark access the importer needs.
type Repository interface {
	List(ctx context.Context, userID string) ([]domain.Bookmark, error)
	Create(ctx context.Context, userID, title, url string) (domain.Bookmark, error)
}

// Result counts what an import did.
type Result struct {
	Created int
	Skipped int // URL already saved by the user
}

// Importer creates drafts as bookmarks of one user.
type Importer struct {
	repo   Repository
	logger logger.Logger
}

func NewImporter(repo Repository, log logger.Logger) *Importer {
	return &Importer{repo: repo, logger: log.Named("import")}
}

// Import creates every draft whose URL the user has not saved yet. It
// stops at the first store error and reports what was done so far.
func (i *Importer) Import(ctx context.Context, userID string, drafts []Draft) (Result, error) {
	var res Result

	existing, err := i.repo.List(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list existing bookmarks: %w", err)
	}
	saved := make(map[string]bool, len(existing))
	for _, b := range existing {
		saved[b.URL] = true
	}

	for _, d := range drafts {
		if saved[d.URL] {
			res.Skipped++
			continue
		}
		if _, err := i.repo.Create(ctx, userID, d.Title, d.URL); err != nil {
			return res, fmt.Errorf("create %q: %w", d.URL, err)
		}
		saved[d.URL] = true
		res.Created++
		i.logger.Debug("bookmark imported",
			logger.String("title", d.Title),
			logger.String("group", d.Group))
	}

	i.logger.Info("import finished",
		logger.String("user_id", userID),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped))
	return res, nil
}
