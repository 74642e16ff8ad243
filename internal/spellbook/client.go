package spellbook

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/goccy/go-json"

	"github.com/mmrzaf/cardbase/internal/domain"
)

const (
	CompressedAssetName   = "variants.db.gz"
	UncompressedAssetName = "variants.db"
)

type Client struct {
	http        *http.Client
	userAgent   string
	releasesURL string
}

func NewClient(httpClient *http.Client, userAgent, releasesURL string) *Client {
	return &Client{
		http:        httpClient,
		userAgent:   userAgent,
		releasesURL: releasesURL,
	}
}

// ListReleases fetches all releases, newest first by each release's own
// update timestamp.
func (c *Client) ListReleases(ctx context.Context) ([]domain.Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releasesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build releases request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "GET", URL: c.releasesURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{Op: "GET", URL: c.releasesURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var releases []domain.Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}

	sort.Slice(releases, func(i, j int) bool {
		return releases[i].UpdatedAt > releases[j].UpdatedAt
	})
	return releases, nil
}

// PickAsset scans releases newest-first and returns the first release that
// carries the combo database, preferring the compressed asset within a
// release. The winner can be older than the newest release when the newest
// one lacks the asset; that release simply has nothing for us.
func PickAsset(releases []domain.Release) (release domain.Release, asset domain.ReleaseAsset, compressed bool, err error) {
	for _, rel := range releases {
		var fallback *domain.ReleaseAsset
		for i, a := range rel.Assets {
			switch a.Name {
			case CompressedAssetName:
				return rel, a, true, nil
			case UncompressedAssetName:
				fallback = &rel.Assets[i]
			}
		}
		if fallback != nil {
			return rel, *fallback, false, nil
		}
	}
	return domain.Release{}, domain.ReleaseAsset{}, false, &domain.VersionCheckError{Reason: "no release carries a combo database asset"}
}
