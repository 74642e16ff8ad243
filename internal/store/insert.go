package store

import (
	"database/sql"
	"fmt"
)

// One prepared statement per flush, executed row by row inside the caller's
// transaction. SQLite caps bind variables per statement well below a
// 5000-row VALUES list, so the batch boundary lives at the flush, not in a
// single giant statement.

func (s *Store) InsertCards(tx *sql.Tx, cards []Card) error {
	if len(cards) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO cards (
		id, oracle_id, name, lang, released_at, set_code, set_name,
		collector_number, layout, mana_cost, cmc, type_line, oracle_text,
		power, toughness, loyalty, colors, color_identity, keywords, rarity,
		digital, reserved, edhrec_rank, legalities, price_usd_cents,
		price_usd_foil_cents, image_uri
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare card insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cards {
		_, err := stmt.Exec(
			c.ID, c.OracleID, c.Name, c.Lang, c.ReleasedAt, c.SetCode, c.SetName,
			c.CollectorNumber, c.Layout, c.ManaCost, c.CMC, c.TypeLine, c.OracleText,
			c.Power, c.Toughness, c.Loyalty, c.ColorsJSON, c.ColorIdentityJSON,
			c.KeywordsJSON, c.Rarity, boolToInt(c.Digital), boolToInt(c.Reserved),
			c.EdhrecRank, c.LegalitiesJSON, c.PriceUSDCents, c.PriceFoilCents, c.ImageURI,
		)
		if err != nil {
			return fmt.Errorf("insert card %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Store) InsertSets(tx *sql.Tx, sets []Set) error {
	if len(sets) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO sets (
		code, name, set_type, released_at, card_count, digital, icon_svg_uri
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare set insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range sets {
		_, err := stmt.Exec(v.Code, v.Name, v.SetType, v.ReleasedAt, v.CardCount, boolToInt(v.Digital), v.IconSVGURI)
		if err != nil {
			return fmt.Errorf("insert set %s: %w", v.Code, err)
		}
	}
	return nil
}

func (s *Store) InsertRulings(tx *sql.Tx, rulings []Ruling) error {
	if len(rulings) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO rulings (
		oracle_id, source, published_at, comment
	) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ruling insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rulings {
		if _, err := stmt.Exec(r.OracleID, r.Source, r.PublishedAt, r.Comment); err != nil {
			return fmt.Errorf("insert ruling for %s: %w", r.OracleID, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
