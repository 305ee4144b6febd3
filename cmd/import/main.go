// Command import loads a Homepage bookmarks.yaml or services.yaml into one
// user's bookmarks. Entries whose URL the user already saved are skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/config"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/postgres"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
	pgstore "github.com/MrSnakeDoc/smartmarks/internal/store/postgres"
)

func main() {
	file := flag.String("file", "", "path to the Homepage yaml file")
	format := flag.String("format", string(homepage.FormatBookmarks), "file format: bookmarks or services")
	user := flag.String("user", "", "owner user id (uuid)")
	dryRun := flag.Bool("dry-run", false, "print what would be imported")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if err := run(*file, homepage.Format(*format), *user, *dryRun, *verbose); err != nil {
		log.Printf("❌ import failed: %v", err)
		os.Exit(1)
	}
}

func run(file string, format homepage.Format, user string, dryRun, verbose bool) error {
	if file == "" {
		return fmt.Errorf("-file is required")
	}
	if _, err := uuid.Parse(user); err != nil {
		return fmt.Errorf("-user must be a uuid: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log := logger.New(level, true)
	defer func() { _ = log.Sync() }()

	loader, err := homepage.NewLoader(file, format)
	if err != nil {
		return err
	}
	drafts, err := loader.Load()
	if err != nil {
		return err
	}
	log.Info("file loaded", logger.String("file", file), logger.Int("entries", len(drafts)))

	if dryRun {
		for _, d := range drafts {
			fmt.Printf("%-20s %-30s %s\n", d.Group, d.Title, d.URL)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.New(postgres.DefaultConnectOptions(config.LoadDatabase(), 2, 15*time.Second), log)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := bookmarks.NewRepository(pgstore.NewBookmarkStore(pool), nil, nil, log)
	res, err := homepage.NewImporter(repo, log).Import(ctx, user, drafts)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d created, %d already saved\n", res.Created, res.Skipped)
	return nil
}
