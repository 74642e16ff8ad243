package scryfall

// Wire types for the bulk datasets and the card API. Only the fields the
// store keeps are declared; the decoder skips the rest.

type RawCard struct {
	ID              string            `json:"id"`
	OracleID        string            `json:"oracle_id"`
	Name            string            `json:"name"`
	Lang            string            `json:"lang"`
	ReleasedAt      string            `json:"released_at"`
	Set             string            `json:"set"`
	SetName         string            `json:"set_name"`
	CollectorNumber string            `json:"collector_number"`
	Layout          string            `json:"layout"`
	ManaCost        *string           `json:"mana_cost"`
	CMC             float64           `json:"cmc"`
	TypeLine        string            `json:"type_line"`
	OracleText      *string           `json:"oracle_text"`
	Power           *string           `json:"power"`
	Toughness       *string           `json:"toughness"`
	Loyalty         *string           `json:"loyalty"`
	Colors          []string          `json:"colors"`
	ColorIdentity   []string          `json:"color_identity"`
	Keywords        []string          `json:"keywords"`
	Rarity          string            `json:"rarity"`
	Digital         bool              `json:"digital"`
	Reserved        bool              `json:"reserved"`
	EdhrecRank      *int64            `json:"edhrec_rank"`
	Legalities      map[string]string `json:"legalities"`
	Prices          RawPrices         `json:"prices"`
	ImageURIs       *RawImageURIs     `json:"image_uris"`
	CardFaces       []RawCardFace     `json:"card_faces"`
}

// RawCardFace carries the per-face fields multi-faced layouts keep off the
// top level.
type RawCardFace struct {
	Name       string        `json:"name"`
	ManaCost   *string       `json:"mana_cost"`
	TypeLine   string        `json:"type_line"`
	OracleText *string       `json:"oracle_text"`
	Power      *string       `json:"power"`
	Toughness  *string       `json:"toughness"`
	Loyalty    *string       `json:"loyalty"`
	ImageURIs  *RawImageURIs `json:"image_uris"`
}

type RawPrices struct {
	USD     *string `json:"usd"`
	USDFoil *string `json:"usd_foil"`
}

type RawImageURIs struct {
	Normal string `json:"normal"`
}

type RawSet struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	SetType    string `json:"set_type"`
	ReleasedAt string `json:"released_at"`
	CardCount  int64  `json:"card_count"`
	Digital    bool   `json:"digital"`
	IconSVGURI string `json:"icon_svg_uri"`
}

type RawRuling struct {
	OracleID    string `json:"oracle_id"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Comment     string `json:"comment"`
}
