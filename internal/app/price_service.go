package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/cardbase/internal/config"
	"github.com/mmrzaf/cardbase/internal/domain"
	"github.com/mmrzaf/cardbase/internal/logging"
	"github.com/mmrzaf/cardbase/internal/money"
	"github.com/mmrzaf/cardbase/internal/scryfall"
)

type PriceService struct {
	cfg    *config.Config
	client *scryfall.Client
	logger *logging.Logger
}

func NewPriceService(cfg *config.Config, client *scryfall.Client, logger *logging.Logger) *PriceService {
	return &PriceService{cfg: cfg, client: client, logger: logger}
}

// PriceCache is the persisted warm cache. Amounts are two-decimal strings;
// FetchedAt lets the consumer apply its own TTL.
type PriceCache struct {
	FetchedAt string                       `json:"fetched_at"`
	Prices    map[string]domain.PricePoint `json:"prices"`
}

// Warm looks up prices for everything in the local collection and persists
// them keyed "name|SET|number", falling back to the bare name for items with
// no recorded printing. This is a cache warm, never correctness-critical:
// callers treat any error as a warning, and a missing collection is a no-op.
func (s *PriceService) Warm(ctx context.Context) (int, error) {
	items, err := s.readCollection()
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		s.logger.Debug("no collection items, skipping price warm")
		return 0, nil
	}

	priced, err := s.client.LookupPrices(ctx, items)
	if err != nil {
		return 0, err
	}

	nameOnly := make(map[string]bool)
	for _, it := range items {
		if it.SetCode == "" || it.CollectorNumber == "" {
			nameOnly[strings.ToLower(it.Name)] = true
		}
	}

	cache := PriceCache{
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		Prices:    make(map[string]domain.PricePoint, len(priced)),
	}
	for _, card := range priced {
		point, err := normalizePrices(card.Prices)
		if err != nil {
			s.logger.Warn("skipping malformed price for %s: %v", card.Name, err)
			continue
		}
		key := CacheKey(card.Name, card.Set, card.CollectorNumber)
		cache.Prices[key] = point
		if nameOnly[strings.ToLower(card.Name)] {
			cache.Prices[card.Name] = point
		}
	}

	if err := s.writeCache(&cache); err != nil {
		return 0, err
	}
	s.logger.Info("warmed price cache: %d entries", len(cache.Prices))
	return len(cache.Prices), nil
}

// CacheKey builds the printing-specific cache key: "name|SET|number".
func CacheKey(name, setCode, collectorNumber string) string {
	return fmt.Sprintf("%s|%s|%s", name, strings.ToUpper(setCode), collectorNumber)
}

// normalizePrices round-trips vendor decimals through integer cents so the
// cached amounts are exact two-decimal values.
func normalizePrices(p domain.PricePoint) (domain.PricePoint, error) {
	var out domain.PricePoint
	if p.USD != nil && *p.USD != "" {
		cents, err := money.ParseToCents(*p.USD)
		if err != nil {
			return out, err
		}
		v := money.FormatCents(cents)
		out.USD = &v
	}
	if p.USDFoil != nil && *p.USDFoil != "" {
		cents, err := money.ParseToCents(*p.USDFoil)
		if err != nil {
			return out, err
		}
		v := money.FormatCents(cents)
		out.USDFoil = &v
	}
	return out, nil
}

// readCollection pulls every printing-identified item from the collection
// store. A missing collection file is not an error; there is nothing to
// warm.
func (s *PriceService) readCollection() ([]domain.CollectionItem, error) {
	if _, err := os.Stat(s.cfg.CollectionDBPath); err != nil {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", s.cfg.CollectionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, COALESCE(set_code, ''), COALESCE(collector_number, '') FROM collection`)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	defer rows.Close()

	var items []domain.CollectionItem
	for rows.Next() {
		var it domain.CollectionItem
		if err := rows.Scan(&it.Name, &it.SetCode, &it.CollectorNumber); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PriceService) writeCache(cache *PriceCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price cache: %w", err)
	}

	path := s.cfg.PriceCachePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create price cache directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write price cache: %w", err)
	}
	return os.Rename(tmpPath, path)
}
