package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/mmrzaf/cardbase/internal/domain"
)

const SchemaVersion = "1"

// Legality flags are STORED generated columns over the legalities JSON blob:
// derived once at write time so filtered reads never parse the blob.
const createTablesSQL = `
CREATE TABLE cards (
	id TEXT PRIMARY KEY,
	oracle_id TEXT,
	name TEXT NOT NULL,
	lang TEXT NOT NULL DEFAULT 'en',
	released_at TEXT,
	set_code TEXT NOT NULL,
	set_name TEXT,
	collector_number TEXT NOT NULL,
	layout TEXT,
	mana_cost TEXT,
	cmc REAL NOT NULL DEFAULT 0,
	type_line TEXT,
	oracle_text TEXT,
	power TEXT,
	toughness TEXT,
	loyalty TEXT,
	colors TEXT NOT NULL DEFAULT '[]',
	color_identity TEXT NOT NULL DEFAULT '[]',
	keywords TEXT NOT NULL DEFAULT '[]',
	rarity TEXT NOT NULL CHECK (rarity IN ('common', 'uncommon', 'rare', 'mythic', 'special', 'bonus')),
	digital INTEGER NOT NULL DEFAULT 0,
	reserved INTEGER NOT NULL DEFAULT 0,
	edhrec_rank INTEGER,
	legalities TEXT NOT NULL DEFAULT '{}',
	price_usd_cents INTEGER,
	price_usd_foil_cents INTEGER,
	image_uri TEXT,
	commander_legal INTEGER GENERATED ALWAYS AS (json_extract(legalities, '$.commander') = 'legal') STORED,
	modern_legal INTEGER GENERATED ALWAYS AS (json_extract(legalities, '$.modern') = 'legal') STORED,
	pauper_legal INTEGER GENERATED ALWAYS AS (json_extract(legalities, '$.pauper') = 'legal') STORED
);

CREATE TABLE sets (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	set_type TEXT,
	released_at TEXT,
	card_count INTEGER NOT NULL DEFAULT 0,
	digital INTEGER NOT NULL DEFAULT 0,
	icon_svg_uri TEXT
);

CREATE TABLE rulings (
	oracle_id TEXT NOT NULL,
	source TEXT,
	published_at TEXT,
	comment TEXT NOT NULL
);

CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Exact-match indexes cover the natural lookup keys; the partial indexes are
// scoped to the narrow predicates queries actually use, so their size tracks
// query need rather than table size.
var indexStmts = []string{
	`CREATE INDEX idx_cards_name ON cards (name)`,
	`CREATE INDEX idx_cards_set_number ON cards (set_code, collector_number)`,
	`CREATE INDEX idx_cards_paper_name ON cards (name) WHERE digital = 0`,
	`CREATE INDEX idx_cards_priced ON cards (price_usd_cents) WHERE price_usd_cents IS NOT NULL`,
	`CREATE INDEX idx_rulings_oracle ON rulings (oracle_id)`,
	`CREATE INDEX idx_sets_name ON sets (name)`,
}

// CreateSchema creates all tables on the caller's transaction. The database
// file is expected to be fresh; rebuilds replace it wholesale.
func (s *Store) CreateSchema(tx *sql.Tx) error {
	if _, err := tx.Exec(createTablesSQL); err != nil {
		return &domain.SchemaError{Stmt: "create tables", Err: err}
	}
	return nil
}

// BuildIndexes runs after all rows are imported so index construction sees
// the full table once instead of maintaining entries per insert.
func (s *Store) BuildIndexes(tx *sql.Tx) error {
	for _, stmt := range indexStmts {
		if _, err := tx.Exec(stmt); err != nil {
			return &domain.SchemaError{Stmt: stmt, Err: err}
		}
	}
	return nil
}

// BuildSearchIndex copies the searchable text columns into the FTS5 table
// and compacts it. This is the most expensive single step and is sequenced
// last so it never runs ahead of a phase that can still fail.
func (s *Store) BuildSearchIndex(tx *sql.Tx) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE cards_fts USING fts5(name, type_line, oracle_text, content='cards', content_rowid='rowid')`,
		`INSERT INTO cards_fts (rowid, name, type_line, oracle_text)
			SELECT rowid, name, type_line, oracle_text FROM cards`,
		`INSERT INTO cards_fts (cards_fts) VALUES ('optimize')`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return &domain.SchemaError{Stmt: stmt, Err: err}
		}
	}
	return nil
}

// StampVersion records the freshness marker, entity counts, and creation
// time. The marker written here is what the next freshness check reads.
func (s *Store) StampVersion(tx *sql.Tx, marker string, counts map[string]int64, now time.Time) error {
	values := map[string]string{
		"schema_version":      SchemaVersion,
		"created_at":          now.UTC().Format(time.RFC3339),
		"scryfall_updated_at": marker,
	}
	for entity, n := range counts {
		values[entity+"_count"] = strconv.FormatInt(n, 10)
	}
	for k, v := range values {
		if err := s.SetMeta(tx, k, v); err != nil {
			return fmt.Errorf("stamp %s: %w", k, err)
		}
	}
	return nil
}
