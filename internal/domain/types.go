package domain

// BulkSource describes one remote bulk dataset: where to fetch it and the
// freshness marker identifying its current generation. UpdatedAt is a
// fixed-width RFC3339 UTC timestamp, so plain string comparison is a total
// order across markers from the same source family.
type BulkSource struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	DownloadURI string `json:"download_uri"`
	UpdatedAt   string `json:"updated_at"`
	Size        int64  `json:"size"`
}

type Release struct {
	TagName   string         `json:"tag_name"`
	UpdatedAt string         `json:"updated_at"`
	Assets    []ReleaseAsset `json:"assets"`
}

type ReleaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// Progress is one snapshot of overall build progress. Within a build,
// Fraction never decreases: each phase reports into its own fixed slice of
// [0,1] and phases advance in order.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Status   string  `json:"status"`
}

type BuildStatus string

const (
	BuildStatusRunning BuildStatus = "running"
	BuildStatusSkipped BuildStatus = "skipped"
	BuildStatusSuccess BuildStatus = "success"
	BuildStatusFailed  BuildStatus = "failed"
)

// CollectionItem is one owned printing from the user's collection store.
// SetCode and CollectorNumber are empty when the collection only records a
// card name.
type CollectionItem struct {
	Name            string
	SetCode         string
	CollectorNumber string
}

// PricePoint holds looked-up prices in decimal form, nil when the vendor has
// no price for a finish.
type PricePoint struct {
	USD     *string `json:"usd"`
	USDFoil *string `json:"usd_foil"`
}
