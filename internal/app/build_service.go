package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmrzaf/cardbase/internal/config"
	"github.com/mmrzaf/cardbase/internal/domain"
	"github.com/mmrzaf/cardbase/internal/fetch"
	"github.com/mmrzaf/cardbase/internal/importer"
	"github.com/mmrzaf/cardbase/internal/logging"
	"github.com/mmrzaf/cardbase/internal/scryfall"
	"github.com/mmrzaf/cardbase/internal/store"
)

// cardBulkType is the bulk dataset whose freshness marker drives rebuild
// decisions.
const cardBulkType = "default_cards"

// Rough bytes-per-record figures used only to shape import progress; the
// true count is whatever the stream yields.
const (
	approxCardBytes   = 2048
	approxRulingBytes = 300
)

type BuildService struct {
	cfg      *config.Config
	client   *scryfall.Client
	http     *http.Client
	importer *importer.Importer
	logger   *logging.Logger
}

func NewBuildService(cfg *config.Config, client *scryfall.Client, httpClient *http.Client, logger *logging.Logger) *BuildService {
	return &BuildService{
		cfg:      cfg,
		client:   client,
		http:     httpClient,
		importer: importer.New(cfg.BatchSize),
		logger:   logger,
	}
}

type BuildResult struct {
	Status      domain.BuildStatus
	Marker      string
	CardCount   int64
	SetCount    int64
	RulingCount int64
	Duration    time.Duration
}

// Build is a running database build. Progress carries monotonic updates and
// closes when the build finishes; Wait returns the final result or error.
type Build struct {
	Progress <-chan domain.Progress

	group  *errgroup.Group
	result *BuildResult
}

func (b *Build) Wait() (*BuildResult, error) {
	if err := b.group.Wait(); err != nil {
		return nil, err
	}
	return b.result, nil
}

// Start dispatches the build to a background worker so the caller's
// progress-consuming loop is never starved by the CPU- and disk-bound
// import and index phases. At most one build runs per invocation.
func (s *BuildService) Start(ctx context.Context, force bool) *Build {
	pub := newProgressPublisher(64)
	b := &Build{Progress: pub.ch}

	g, ctx := errgroup.WithContext(ctx)
	b.group = g
	g.Go(func() error {
		defer pub.close()
		result, err := s.run(ctx, pub, force)
		if err != nil {
			return err
		}
		b.result = result
		return nil
	})
	return b
}

func (s *BuildService) run(ctx context.Context, pub *progressPublisher, force bool) (*BuildResult, error) {
	start := time.Now()
	db := store.New(s.cfg.DatabasePath)

	pub.publish(0, "checking for updates")
	needsUpdate, sources, marker, err := s.checkFreshness(ctx, db, force)
	if err != nil {
		return nil, err
	}
	if !needsUpdate {
		s.logger.Info("card database is up to date (marker %s)", marker)
		pub.publish(1, "up to date")
		return &BuildResult{Status: domain.BuildStatusSkipped, Marker: marker, Duration: time.Since(start)}, nil
	}

	cardSource, err := scryfall.FindBulkSource(sources, cardBulkType)
	if err != nil {
		return nil, err
	}
	rulingSource, err := scryfall.FindBulkSource(sources, "rulings")
	if err != nil {
		return nil, err
	}

	// Old file goes first; a reader never sees a half-written database
	// because nothing reads until completion is signaled.
	if err := db.Remove(); err != nil {
		return nil, err
	}
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("open card database: %w", err)
	}
	defer db.Close()

	if err := s.runPhase(db, "create schema", db.CreateSchema); err != nil {
		return nil, err
	}
	pub.publish(phaseSchemaEnd, "schema created")

	downloads := []struct {
		name string
		url  string
		path string
	}{
		{"cards", cardSource.DownloadURI, filepath.Join(s.cfg.DataDir, "bulk-cards.json")},
		{"rulings", rulingSource.DownloadURI, filepath.Join(s.cfg.DataDir, "bulk-rulings.json")},
		{"sets", s.cfg.SetsURL, filepath.Join(s.cfg.DataDir, "bulk-sets.json")},
	}
	defer func() {
		for _, d := range downloads {
			os.Remove(d.path)
		}
	}()

	dlSpan := (phaseDownloadEnd - phaseSchemaEnd) / float64(len(downloads))
	for i, d := range downloads {
		lo := phaseSchemaEnd + dlSpan*float64(i)
		s.logger.Info("downloading %s from %s", d.name, d.url)
		err := fetch.Download(ctx, s.http, s.cfg.UserAgent, d.url, d.path, func(done, total int64) {
			if total > 0 {
				pub.publish(span(lo, lo+dlSpan, float64(done)/float64(total)), fmt.Sprintf("downloading %s", d.name))
			} else {
				pub.publish(lo, fmt.Sprintf("downloading %s", d.name))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", d.name, err)
		}
		pub.publish(lo+dlSpan, fmt.Sprintf("downloaded %s", d.name))
	}

	result := &BuildResult{Status: domain.BuildStatusSuccess, Marker: cardSource.UpdatedAt}

	impSpan := (phaseImportEnd - phaseDownloadEnd) / float64(len(downloads))
	importOne := func(i int, name string, est int64, do func(importer.FlushFunc) (int64, error)) (int64, error) {
		lo := phaseDownloadEnd + impSpan*float64(i)
		count, err := do(func(total int64) {
			frac := 0.95
			if est > 0 && total < est {
				frac = float64(total) / float64(est)
			}
			pub.publish(span(lo, lo+impSpan, frac), fmt.Sprintf("imported %d %s", total, name))
		})
		if err != nil {
			return 0, fmt.Errorf("import %s: %w", name, err)
		}
		pub.publish(lo+impSpan, fmt.Sprintf("imported %d %s", count, name))
		s.logger.Info("imported %d %s", count, name)
		return count, nil
	}

	result.CardCount, err = importOne(0, "cards", estimateRecords(cardSource.Size, approxCardBytes), func(onFlush importer.FlushFunc) (int64, error) {
		tx, err := db.Begin()
		if err != nil {
			return 0, err
		}
		count, err := s.importer.ImportCards(ctx, tx, downloads[0].path, db, onFlush)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		return count, tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	result.RulingCount, err = importOne(1, "rulings", estimateRecords(rulingSource.Size, approxRulingBytes), func(onFlush importer.FlushFunc) (int64, error) {
		tx, err := db.Begin()
		if err != nil {
			return 0, err
		}
		count, err := s.importer.ImportRulings(ctx, tx, downloads[1].path, db, onFlush)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		return count, tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	result.SetCount, err = importOne(2, "sets", 1000, func(onFlush importer.FlushFunc) (int64, error) {
		tx, err := db.Begin()
		if err != nil {
			return 0, err
		}
		count, err := s.importer.ImportSets(ctx, tx, downloads[2].path, db, onFlush)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		return count, tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	if err := s.runPhase(db, "build indexes", db.BuildIndexes); err != nil {
		return nil, err
	}
	pub.publish(phaseIndexEnd, "indexes built")

	if err := s.runPhase(db, "build search index", db.BuildSearchIndex); err != nil {
		return nil, err
	}
	pub.publish(phaseSearchEnd, "search index built")

	counts := map[string]int64{
		"card":   result.CardCount,
		"set":    result.SetCount,
		"ruling": result.RulingCount,
	}
	err = s.runPhase(db, "stamp version", func(tx *sql.Tx) error {
		return db.StampVersion(tx, cardSource.UpdatedAt, counts, time.Now())
	})
	if err != nil {
		return nil, err
	}
	pub.publish(1, "done")

	result.Duration = time.Since(start)
	s.logger.Info("card database built: %d cards, %d sets, %d rulings in %.1fs",
		result.CardCount, result.SetCount, result.RulingCount, result.Duration.Seconds())
	return result, nil
}

// checkFreshness implements the rebuild decision. A failed metadata fetch
// fails open when a usable local copy exists; with no local copy the error is
// fatal, since there is nothing to serve and nothing to build from.
func (s *BuildService) checkFreshness(ctx context.Context, db *store.Store, force bool) (bool, []domain.BulkSource, string, error) {
	sources, err := s.client.ListBulkData(ctx)
	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) && db.Exists() {
			s.logger.Warn("bulk metadata fetch failed, keeping existing database: %v", err)
			return false, nil, "", nil
		}
		return false, nil, "", fmt.Errorf("fetch bulk metadata: %w", err)
	}

	cardSource, err := scryfall.FindBulkSource(sources, cardBulkType)
	if err != nil {
		return false, nil, "", err
	}
	remote := cardSource.UpdatedAt

	if force || !db.Exists() {
		return true, sources, remote, nil
	}

	if err := db.Open(); err != nil {
		s.logger.Warn("could not open existing database, rebuilding: %v", err)
		return true, sources, remote, nil
	}
	stored, err := db.Meta("scryfall_updated_at")
	db.Close()
	if err != nil || stored == "" {
		return true, sources, remote, nil
	}

	// Markers are fixed-width RFC3339 UTC timestamps; string order is time
	// order.
	return remote > stored, sources, remote, nil
}

// runPhase commits one state transition as its own transaction. Phases are
// durability checkpoints, not resume points: no phase marker is written, so
// a crash mid-build means a full rebuild.
func (s *BuildService) runPhase(db *store.Store, name string, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%s: begin: %w", name, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", name, err)
	}
	return nil
}

func estimateRecords(sizeBytes, perRecord int64) int64 {
	if sizeBytes <= 0 || perRecord <= 0 {
		return 0
	}
	return sizeBytes / perRecord
}
