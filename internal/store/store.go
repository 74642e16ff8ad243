package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the local card database. During a build it has exactly one
// writer; readers wait for build completion before opening the file.
type Store struct {
	path string
	db   *sql.DB
}

// Card is one transformed record ready for insertion. Slice and map fields
// from the source arrive already serialized to JSON text; prices are integer
// cents.
type Card struct {
	ID                string
	OracleID          string
	Name              string
	Lang              string
	ReleasedAt        string
	SetCode           string
	SetName           string
	CollectorNumber   string
	Layout            string
	ManaCost          sql.NullString
	CMC               float64
	TypeLine          string
	OracleText        sql.NullString
	Power             sql.NullString
	Toughness         sql.NullString
	Loyalty           sql.NullString
	ColorsJSON        string
	ColorIdentityJSON string
	KeywordsJSON      string
	Rarity            string
	Digital           bool
	Reserved          bool
	EdhrecRank        sql.NullInt64
	LegalitiesJSON    string
	PriceUSDCents     sql.NullInt64
	PriceFoilCents    sql.NullInt64
	ImageURI          sql.NullString
}

type Set struct {
	Code       string
	Name       string
	SetType    string
	ReleasedAt string
	CardCount  int64
	Digital    bool
	IconSVGURI string
}

type Ruling struct {
	OracleID    string
	Source      string
	PublishedAt string
	Comment     string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Open connects to the database file, creating parent directories as needed.
func (s *Store) Open() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

// Remove deletes the database file. A rebuild replaces the file wholesale;
// the old one goes before the first write of the new one.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old database: %w", err)
	}
	return nil
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Meta reads one value from the meta table. Returns "" without error when
// the key is absent or the table does not exist yet, so callers can treat
// pre-marker databases as unversioned.
func (s *Store) Meta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		if isMissingTable(err) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// AllMeta returns the whole meta table for status display.
func (s *Store) AllMeta() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta ORDER BY key`)
	if err != nil {
		if isMissingTable(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) CountRows(table string) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
	return n, err
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
