package importer

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mmrzaf/cardbase/internal/money"
	"github.com/mmrzaf/cardbase/internal/scryfall"
	"github.com/mmrzaf/cardbase/internal/store"
)

// transformCard flattens a raw card into one storable row. Multi-faced
// layouts keep most text on the faces, so the front face fills in whatever
// the top level lacks. Prices become integer cents, and list/map fields are
// serialized to JSON text columns; the schema derives legality flags from
// the legalities column at write time.
func transformCard(raw *scryfall.RawCard) (store.Card, error) {
	if raw.ID == "" {
		return store.Card{}, errors.New("card record missing id")
	}
	if raw.Name == "" {
		return store.Card{}, errors.New("card record missing name")
	}

	manaCost := raw.ManaCost
	typeLine := raw.TypeLine
	oracleText := raw.OracleText
	power := raw.Power
	toughness := raw.Toughness
	loyalty := raw.Loyalty
	imageURI := ""
	if raw.ImageURIs != nil {
		imageURI = raw.ImageURIs.Normal
	}

	if len(raw.CardFaces) > 0 {
		front := raw.CardFaces[0]
		if manaCost == nil || *manaCost == "" {
			manaCost = front.ManaCost
		}
		if typeLine == "" {
			lines := make([]string, 0, len(raw.CardFaces))
			for _, face := range raw.CardFaces {
				if face.TypeLine != "" {
					lines = append(lines, face.TypeLine)
				}
			}
			typeLine = strings.Join(lines, " // ")
		}
		if oracleText == nil {
			texts := make([]string, 0, len(raw.CardFaces))
			for _, face := range raw.CardFaces {
				if face.OracleText != nil && *face.OracleText != "" {
					texts = append(texts, *face.OracleText)
				}
			}
			if len(texts) > 0 {
				joined := strings.Join(texts, "\n//\n")
				oracleText = &joined
			}
		}
		if power == nil {
			power = front.Power
		}
		if toughness == nil {
			toughness = front.Toughness
		}
		if loyalty == nil {
			loyalty = front.Loyalty
		}
		if imageURI == "" && front.ImageURIs != nil {
			imageURI = front.ImageURIs.Normal
		}
	}

	lang := raw.Lang
	if lang == "" {
		lang = "en"
	}

	colors, err := marshalList(raw.Colors)
	if err != nil {
		return store.Card{}, fmt.Errorf("serialize colors: %w", err)
	}
	identity, err := marshalList(raw.ColorIdentity)
	if err != nil {
		return store.Card{}, fmt.Errorf("serialize color_identity: %w", err)
	}
	keywords, err := marshalList(raw.Keywords)
	if err != nil {
		return store.Card{}, fmt.Errorf("serialize keywords: %w", err)
	}

	legalities := "{}"
	if raw.Legalities != nil {
		data, err := json.Marshal(raw.Legalities)
		if err != nil {
			return store.Card{}, fmt.Errorf("serialize legalities: %w", err)
		}
		legalities = string(data)
	}

	usdCents, err := priceCents(raw.Prices.USD)
	if err != nil {
		return store.Card{}, fmt.Errorf("usd price: %w", err)
	}
	foilCents, err := priceCents(raw.Prices.USDFoil)
	if err != nil {
		return store.Card{}, fmt.Errorf("usd_foil price: %w", err)
	}

	return store.Card{
		ID:                raw.ID,
		OracleID:          raw.OracleID,
		Name:              raw.Name,
		Lang:              lang,
		ReleasedAt:        raw.ReleasedAt,
		SetCode:           raw.Set,
		SetName:           raw.SetName,
		CollectorNumber:   raw.CollectorNumber,
		Layout:            raw.Layout,
		ManaCost:          nullString(manaCost),
		CMC:               raw.CMC,
		TypeLine:          typeLine,
		OracleText:        nullString(oracleText),
		Power:             nullString(power),
		Toughness:         nullString(toughness),
		Loyalty:           nullString(loyalty),
		ColorsJSON:        colors,
		ColorIdentityJSON: identity,
		KeywordsJSON:      keywords,
		Rarity:            raw.Rarity,
		Digital:           raw.Digital,
		Reserved:          raw.Reserved,
		EdhrecRank:        nullInt(raw.EdhrecRank),
		LegalitiesJSON:    legalities,
		PriceUSDCents:     usdCents,
		PriceFoilCents:    foilCents,
		ImageURI:          nullStringValue(imageURI),
	}, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func priceCents(decimal *string) (sql.NullInt64, error) {
	if decimal == nil || *decimal == "" {
		return sql.NullInt64{}, nil
	}
	cents, err := money.ParseToCents(*decimal)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: cents, Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
