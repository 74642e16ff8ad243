package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmrzaf/cardbase/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "nested", "cards.db"))
	if err := s.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, s *Store, fn func(tx *sql.Tx) error) {
	t.Helper()

	tx, err := s.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func testCard(id, name string) Card {
	return Card{
		ID:                id,
		Name:              name,
		Lang:              "en",
		SetCode:           "tst",
		CollectorNumber:   "1",
		Rarity:            "common",
		ColorsJSON:        "[]",
		ColorIdentityJSON: "[]",
		KeywordsJSON:      "[]",
		LegalitiesJSON:    "{}",
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected db handle to be initialized")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)

	// Absent key reads as empty, not as an error.
	v, err := s.Meta("scryfall_updated_at")
	if err != nil || v != "" {
		t.Fatalf("absent key: %q, %v", v, err)
	}

	mustExec(t, s, func(tx *sql.Tx) error {
		if err := s.SetMeta(tx, "scryfall_updated_at", "2024-01-15T10:00:00Z"); err != nil {
			return err
		}
		return s.SetMeta(tx, "scryfall_updated_at", "2024-02-01T00:00:00Z")
	})

	v, err = s.Meta("scryfall_updated_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2024-02-01T00:00:00Z" {
		t.Errorf("meta value = %q, upsert must overwrite", v)
	}
}

func TestMetaOnDatabaseWithoutSchema(t *testing.T) {
	t.Parallel()

	// A database predating marker recording has no meta table; it reads as
	// unversioned rather than failing.
	s := openTestStore(t)
	v, err := s.Meta("scryfall_updated_at")
	if err != nil || v != "" {
		t.Fatalf("got %q, %v; want empty and no error", v, err)
	}
}

func TestInsertCardsAndGeneratedColumns(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)

	card := testCard("c1", "Sol Ring")
	card.LegalitiesJSON = `{"commander":"legal","modern":"banned","pauper":"not_legal"}`
	card.PriceUSDCents = sql.NullInt64{Int64: 150, Valid: true}

	mustExec(t, s, func(tx *sql.Tx) error {
		return s.InsertCards(tx, []Card{card})
	})

	var commander, modern int
	err := s.DB().QueryRow(`SELECT commander_legal, modern_legal FROM cards WHERE id = 'c1'`).Scan(&commander, &modern)
	if err != nil {
		t.Fatal(err)
	}
	if commander != 1 {
		t.Error("commander_legal should derive to 1 from the legalities blob")
	}
	if modern != 0 {
		t.Error("modern_legal should derive to 0 for a banned card")
	}

	n, err := s.CountRows("cards")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cards count = %d", n)
	}
}

func TestRarityConstraint(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)

	bad := testCard("c2", "Weird Card")
	bad.Rarity = "legendary"

	tx, err := s.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := s.InsertCards(tx, []Card{bad}); err == nil {
		t.Error("expected CHECK constraint to reject unknown rarity")
	}
}

func TestBuildIndexes(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)
	mustExec(t, s, func(tx *sql.Tx) error {
		return s.InsertCards(tx, []Card{testCard("c1", "Sol Ring")})
	})
	mustExec(t, s, s.BuildIndexes)

	rows, err := s.DB().Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		found[name] = true
	}
	for _, want := range []string{"idx_cards_name", "idx_cards_set_number", "idx_cards_paper_name", "idx_cards_priced", "idx_rulings_oracle"} {
		if !found[want] {
			t.Errorf("missing index %s", want)
		}
	}
}

func TestBuildIndexesTwiceFails(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)
	mustExec(t, s, s.BuildIndexes)

	tx, err := s.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	err = s.BuildIndexes(tx)
	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestStampVersion(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)

	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	counts := map[string]int64{"card": 12345, "set": 900, "ruling": 50000}
	mustExec(t, s, func(tx *sql.Tx) error {
		return s.StampVersion(tx, "2024-02-01T00:00:00Z", counts, now)
	})

	meta, err := s.AllMeta()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"schema_version":      SchemaVersion,
		"created_at":          "2024-02-01T12:00:00Z",
		"scryfall_updated_at": "2024-02-01T00:00:00Z",
		"card_count":          "12345",
		"set_count":           "900",
		"ruling_count":        "50000",
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("meta[%s] = %q, want %q", k, meta[k], v)
		}
	}
}

func TestInsertSetsAndRulings(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	mustExec(t, s, s.CreateSchema)

	mustExec(t, s, func(tx *sql.Tx) error {
		if err := s.InsertSets(tx, []Set{{Code: "lea", Name: "Limited Edition Alpha", CardCount: 295}}); err != nil {
			return err
		}
		return s.InsertRulings(tx, []Ruling{{OracleID: "o1", Comment: "A ruling."}})
	})

	if n, _ := s.CountRows("sets"); n != 1 {
		t.Errorf("sets count = %d", n)
	}
	if n, _ := s.CountRows("rulings"); n != 1 {
		t.Errorf("rulings count = %d", n)
	}
}

func TestRemoveMissingFileIsNoError(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "missing.db"))
	if err := s.Remove(); err != nil {
		t.Fatalf("remove of missing file: %v", err)
	}
	if s.Exists() {
		t.Error("missing file reported as existing")
	}
}
