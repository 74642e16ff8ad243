package app

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/cardbase/internal/config"
	"github.com/mmrzaf/cardbase/internal/domain"
	"github.com/mmrzaf/cardbase/internal/fetch"
	"github.com/mmrzaf/cardbase/internal/logging"
	"github.com/mmrzaf/cardbase/internal/spellbook"
)

// comboMarkerKey is stored inside the artifact's own meta table, so the file
// stays relocatable without a side-channel version file.
const comboMarkerKey = "release_timestamp"

type ComboService struct {
	cfg    *config.Config
	client *spellbook.Client
	http   *http.Client
	logger *logging.Logger
}

func NewComboService(cfg *config.Config, client *spellbook.Client, httpClient *http.Client, logger *logging.Logger) *ComboService {
	return &ComboService{cfg: cfg, client: client, http: httpClient, logger: logger}
}

type ComboSyncResult struct {
	// Available reports whether a usable local artifact exists after the
	// sync, regardless of whether anything was downloaded.
	Available bool
	Updated   bool
	Marker    string
	Offline   bool
}

// Sync brings the combo database up to the newest published release. The
// remote being unreachable is never fatal: with a local copy we run offline
// on stale data, without one the dependent features are simply unavailable.
func (s *ComboService) Sync(ctx context.Context) (*ComboSyncResult, error) {
	local := s.localMarker()
	hasLocal := local != ""
	if !hasLocal {
		if _, err := os.Stat(s.cfg.ComboDBPath); err == nil {
			hasLocal = true
		}
	}

	releases, err := s.client.ListReleases(ctx)
	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) {
			if hasLocal {
				s.logger.Warn("combo release listing unreachable, running offline: %v", err)
				return &ComboSyncResult{Available: true, Marker: local, Offline: true}, nil
			}
			s.logger.Warn("combo release listing unreachable and no local copy: %v", err)
			return &ComboSyncResult{Available: false, Offline: true}, nil
		}
		return nil, err
	}

	release, asset, compressed, err := spellbook.PickAsset(releases)
	if err != nil {
		if hasLocal {
			s.logger.Warn("no usable combo asset published, keeping local copy: %v", err)
			return &ComboSyncResult{Available: true, Marker: local}, nil
		}
		return nil, err
	}

	if local != "" && local >= release.UpdatedAt {
		s.logger.Info("combo database is up to date (marker %s)", local)
		return &ComboSyncResult{Available: true, Marker: local}, nil
	}

	dest := s.cfg.ComboDBPath
	downloadPath := dest
	if compressed {
		downloadPath = dest + ".gz"
	}

	s.logger.Info("downloading combo database %s (release %s)", asset.Name, release.UpdatedAt)
	err = fetch.Download(ctx, s.http, s.cfg.UserAgent, asset.DownloadURL, downloadPath, nil)
	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) {
			if hasLocal {
				s.logger.Warn("combo download failed, keeping local copy: %v", err)
				return &ComboSyncResult{Available: true, Marker: local, Offline: true}, nil
			}
			s.logger.Warn("combo download failed and no local copy: %v", err)
			return &ComboSyncResult{Available: false, Offline: true}, nil
		}
		return nil, fmt.Errorf("download combo database: %w", err)
	}

	if compressed {
		if err := gunzip(downloadPath, dest); err != nil {
			os.Remove(downloadPath)
			return nil, fmt.Errorf("decompress combo database: %w", err)
		}
		if err := os.Remove(downloadPath); err != nil {
			s.logger.Warn("could not remove compressed intermediate %s: %v", downloadPath, err)
		}
	}

	if err := s.writeMarker(release.UpdatedAt); err != nil {
		return nil, fmt.Errorf("stamp combo database: %w", err)
	}

	return &ComboSyncResult{Available: true, Updated: true, Marker: release.UpdatedAt}, nil
}

func (s *ComboService) localMarker() string {
	return ReadComboMarker(s.cfg.ComboDBPath)
}

// ReadComboMarker reads the release timestamp embedded in the artifact.
// Missing file, missing table, and missing key all read as "" (unversioned).
func ReadComboMarker(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return ""
	}
	defer db.Close()

	var value string
	err = db.QueryRow(`SELECT value FROM meta WHERE key = ?`, comboMarkerKey).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

func (s *ComboService) writeMarker(marker string) error {
	db, err := sql.Open("sqlite3", s.cfg.ComboDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, comboMarkerKey, marker)
	return err
}

func gunzip(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	zr, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(out, zr); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
