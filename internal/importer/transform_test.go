package importer

import (
	"testing"

	"github.com/mmrzaf/cardbase/internal/scryfall"
)

func strPtr(s string) *string { return &s }

func TestTransformCardFlattensFaces(t *testing.T) {
	t.Parallel()

	raw := &scryfall.RawCard{
		ID:              "abc",
		Name:            "Delver of Secrets // Insectile Aberration",
		Set:             "isd",
		CollectorNumber: "51",
		Rarity:          "common",
		Layout:          "transform",
		CardFaces: []scryfall.RawCardFace{
			{
				Name:       "Delver of Secrets",
				ManaCost:   strPtr("{U}"),
				TypeLine:   "Creature — Human Wizard",
				OracleText: strPtr("At the beginning of your upkeep..."),
				Power:      strPtr("1"),
				Toughness:  strPtr("1"),
				ImageURIs:  &scryfall.RawImageURIs{Normal: "https://img.example/front.jpg"},
			},
			{
				Name:       "Insectile Aberration",
				TypeLine:   "Creature — Human Insect",
				OracleText: strPtr("Flying"),
				Power:      strPtr("3"),
				Toughness:  strPtr("2"),
			},
		},
	}

	card, err := transformCard(raw)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	if card.ManaCost.String != "{U}" {
		t.Errorf("mana cost = %q, want front face cost", card.ManaCost.String)
	}
	if card.TypeLine != "Creature — Human Wizard // Creature — Human Insect" {
		t.Errorf("type line = %q", card.TypeLine)
	}
	if card.Power.String != "1" || card.Toughness.String != "1" {
		t.Errorf("power/toughness = %s/%s, want front face values", card.Power.String, card.Toughness.String)
	}
	if card.ImageURI.String != "https://img.example/front.jpg" {
		t.Errorf("image uri = %q, want front face image", card.ImageURI.String)
	}
	if card.OracleText.String == "" {
		t.Error("oracle text not joined from faces")
	}
}

func TestTransformCardPrefersTopLevelFields(t *testing.T) {
	t.Parallel()

	raw := &scryfall.RawCard{
		ID:              "xyz",
		Name:            "Lightning Bolt",
		Set:             "lea",
		CollectorNumber: "162",
		Rarity:          "common",
		ManaCost:        strPtr("{R}"),
		TypeLine:        "Instant",
		OracleText:      strPtr("Lightning Bolt deals 3 damage to any target."),
		ImageURIs:       &scryfall.RawImageURIs{Normal: "https://img.example/bolt.jpg"},
		CardFaces: []scryfall.RawCardFace{
			{ManaCost: strPtr("{W}")},
		},
	}

	card, err := transformCard(raw)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if card.ManaCost.String != "{R}" {
		t.Errorf("mana cost = %q, top-level must win over face", card.ManaCost.String)
	}
	if card.TypeLine != "Instant" {
		t.Errorf("type line = %q", card.TypeLine)
	}
}

func TestTransformCardPricesToCents(t *testing.T) {
	t.Parallel()

	raw := &scryfall.RawCard{
		ID:              "p1",
		Name:            "Priced Card",
		Set:             "tst",
		CollectorNumber: "1",
		Rarity:          "rare",
		Prices: scryfall.RawPrices{
			USD:     strPtr("12.34"),
			USDFoil: nil,
		},
	}

	card, err := transformCard(raw)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if !card.PriceUSDCents.Valid || card.PriceUSDCents.Int64 != 1234 {
		t.Errorf("usd cents = %+v, want 1234", card.PriceUSDCents)
	}
	if card.PriceFoilCents.Valid {
		t.Errorf("foil cents should be NULL, got %+v", card.PriceFoilCents)
	}
}

func TestTransformCardSerializesListsAndLegalities(t *testing.T) {
	t.Parallel()

	raw := &scryfall.RawCard{
		ID:              "l1",
		Name:            "Legal Card",
		Set:             "tst",
		CollectorNumber: "2",
		Rarity:          "uncommon",
		Colors:          []string{"U", "R"},
		Legalities:      map[string]string{"commander": "legal", "modern": "not_legal"},
	}

	card, err := transformCard(raw)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if card.ColorsJSON != `["U","R"]` {
		t.Errorf("colors = %s", card.ColorsJSON)
	}
	if card.KeywordsJSON != "[]" {
		t.Errorf("keywords = %s, want empty array for nil input", card.KeywordsJSON)
	}
	if card.LegalitiesJSON == "{}" {
		t.Error("legalities blob not serialized")
	}
	if card.Lang != "en" {
		t.Errorf("lang = %q, want default en", card.Lang)
	}
}

func TestTransformCardRejectsMissingIdentity(t *testing.T) {
	t.Parallel()

	if _, err := transformCard(&scryfall.RawCard{Name: "No ID"}); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := transformCard(&scryfall.RawCard{ID: "x"}); err == nil {
		t.Error("expected error for missing name")
	}
}
