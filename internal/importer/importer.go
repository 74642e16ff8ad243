package importer

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/mmrzaf/cardbase/internal/domain"
	"github.com/mmrzaf/cardbase/internal/scryfall"
	"github.com/mmrzaf/cardbase/internal/store"
)

// Sink receives flushed batches. The importer writes on the caller's
// transaction and never commits; the transaction boundary belongs to the
// orchestrator.
type Sink interface {
	InsertCards(tx *sql.Tx, cards []store.Card) error
	InsertSets(tx *sql.Tx, sets []store.Set) error
	InsertRulings(tx *sql.Tx, rulings []store.Ruling) error
}

// FlushFunc receives the cumulative record count after each flush. It fires
// once per flush, not per record, so callback overhead is count/batchSize.
type FlushFunc func(total int64)

// Importer streams a bulk JSON file record by record. Memory use is bounded
// by one decoded record plus the current batch regardless of file size.
type Importer struct {
	batchSize int
}

func New(batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Importer{batchSize: batchSize}
}

// ImportCards streams the bulk card file into the sink.
func (im *Importer) ImportCards(ctx context.Context, tx *sql.Tx, path string, sink Sink, onFlush FlushFunc) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	if err := seekRecordArray(dec); err != nil {
		return 0, &domain.ParseError{Source: "cards", Index: 0, Err: err}
	}

	batch := make([]store.Card, 0, im.batchSize)
	var count int64
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var raw scryfall.RawCard
		if err := dec.Decode(&raw); err != nil {
			return count, &domain.ParseError{Source: "cards", Index: count, Err: err}
		}
		card, err := transformCard(&raw)
		if err != nil {
			return count, &domain.ParseError{Source: "cards", Index: count, Err: err}
		}

		batch = append(batch, card)
		count++
		if len(batch) >= im.batchSize {
			if err := sink.InsertCards(tx, batch); err != nil {
				return count, err
			}
			batch = batch[:0]
			if onFlush != nil {
				onFlush(count)
			}
		}
	}

	if len(batch) > 0 {
		if err := sink.InsertCards(tx, batch); err != nil {
			return count, err
		}
		if onFlush != nil {
			onFlush(count)
		}
	}
	return count, nil
}

// ImportSets streams the set listing into the sink.
func (im *Importer) ImportSets(ctx context.Context, tx *sql.Tx, path string, sink Sink, onFlush FlushFunc) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	if err := seekRecordArray(dec); err != nil {
		return 0, &domain.ParseError{Source: "sets", Index: 0, Err: err}
	}

	batch := make([]store.Set, 0, im.batchSize)
	var count int64
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var raw scryfall.RawSet
		if err := dec.Decode(&raw); err != nil {
			return count, &domain.ParseError{Source: "sets", Index: count, Err: err}
		}

		batch = append(batch, store.Set{
			Code:       raw.Code,
			Name:       raw.Name,
			SetType:    raw.SetType,
			ReleasedAt: raw.ReleasedAt,
			CardCount:  raw.CardCount,
			Digital:    raw.Digital,
			IconSVGURI: raw.IconSVGURI,
		})
		count++
		if len(batch) >= im.batchSize {
			if err := sink.InsertSets(tx, batch); err != nil {
				return count, err
			}
			batch = batch[:0]
			if onFlush != nil {
				onFlush(count)
			}
		}
	}

	if len(batch) > 0 {
		if err := sink.InsertSets(tx, batch); err != nil {
			return count, err
		}
		if onFlush != nil {
			onFlush(count)
		}
	}
	return count, nil
}

// ImportRulings streams the bulk rulings file into the sink.
func (im *Importer) ImportRulings(ctx context.Context, tx *sql.Tx, path string, sink Sink, onFlush FlushFunc) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	if err := seekRecordArray(dec); err != nil {
		return 0, &domain.ParseError{Source: "rulings", Index: 0, Err: err}
	}

	batch := make([]store.Ruling, 0, im.batchSize)
	var count int64
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var raw scryfall.RawRuling
		if err := dec.Decode(&raw); err != nil {
			return count, &domain.ParseError{Source: "rulings", Index: count, Err: err}
		}

		batch = append(batch, store.Ruling{
			OracleID:    raw.OracleID,
			Source:      raw.Source,
			PublishedAt: raw.PublishedAt,
			Comment:     raw.Comment,
		})
		count++
		if len(batch) >= im.batchSize {
			if err := sink.InsertRulings(tx, batch); err != nil {
				return count, err
			}
			batch = batch[:0]
			if onFlush != nil {
				onFlush(count)
			}
		}
	}

	if len(batch) > 0 {
		if err := sink.InsertRulings(tx, batch); err != nil {
			return count, err
		}
		if onFlush != nil {
			onFlush(count)
		}
	}
	return count, nil
}

// seekRecordArray positions the decoder just inside the record array. Bulk
// files are a bare top-level array; the set listing wraps its array in an
// object under a "data" key.
func seekRecordArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read opening token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected leading token %v", tok)
	}
	if delim == '[' {
		return nil
	}
	if delim != '{' {
		return fmt.Errorf("unexpected leading delimiter %v", delim)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read object key: %w", err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return fmt.Errorf("document has no record array")
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		if key == "data" {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("read data token: %w", err)
			}
			if d, ok := tok.(json.Delim); ok && d == '[' {
				return nil
			}
			return fmt.Errorf("data field is not an array")
		}
		if err := skipValue(dec); err != nil {
			return err
		}
	}
}

// skipValue consumes one JSON value without materializing it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
