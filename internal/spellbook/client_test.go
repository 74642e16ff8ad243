package spellbook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmrzaf/cardbase/internal/domain"
)

func TestListReleasesSortsNewestFirst(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"tag_name":"v1","updated_at":"2024-03-01T00:00:00Z","assets":[]},
			{"tag_name":"v2","updated_at":"2024-04-01T00:00:00Z","assets":[]}
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "test-agent", srv.URL)
	releases, err := client.ListReleases(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if releases[0].UpdatedAt != "2024-04-01T00:00:00Z" {
		t.Errorf("releases not sorted newest-first: %+v", releases)
	}
}

func TestPickAssetPrefersCompressed(t *testing.T) {
	t.Parallel()

	releases := []domain.Release{
		{
			UpdatedAt: "2024-04-01T00:00:00Z",
			Assets: []domain.ReleaseAsset{
				{Name: UncompressedAssetName, DownloadURL: "https://rel.example/plain"},
				{Name: CompressedAssetName, DownloadURL: "https://rel.example/gz"},
			},
		},
	}

	_, asset, compressed, err := PickAsset(releases)
	if err != nil {
		t.Fatal(err)
	}
	if !compressed || asset.Name != CompressedAssetName {
		t.Errorf("picked %s (compressed=%v), want compressed asset", asset.Name, compressed)
	}
}

func TestPickAssetFallsBackToOlderRelease(t *testing.T) {
	t.Parallel()

	// The newest release has no usable asset; the scan stops at the first
	// release that does, even though it is older.
	releases := []domain.Release{
		{TagName: "v3", UpdatedAt: "2024-05-01T00:00:00Z", Assets: []domain.ReleaseAsset{{Name: "checksums.txt"}}},
		{TagName: "v2", UpdatedAt: "2024-04-01T00:00:00Z", Assets: []domain.ReleaseAsset{{Name: UncompressedAssetName, DownloadURL: "https://rel.example/v2"}}},
		{TagName: "v1", UpdatedAt: "2024-03-01T00:00:00Z", Assets: []domain.ReleaseAsset{{Name: CompressedAssetName, DownloadURL: "https://rel.example/v1"}}},
	}

	release, asset, compressed, err := PickAsset(releases)
	if err != nil {
		t.Fatal(err)
	}
	if release.TagName != "v2" {
		t.Errorf("picked release %s, want v2", release.TagName)
	}
	if compressed || asset.DownloadURL != "https://rel.example/v2" {
		t.Errorf("picked asset %+v", asset)
	}
}

func TestPickAssetNoneAvailable(t *testing.T) {
	t.Parallel()

	releases := []domain.Release{
		{UpdatedAt: "2024-05-01T00:00:00Z", Assets: []domain.ReleaseAsset{{Name: "notes.md"}}},
	}
	_, _, _, err := PickAsset(releases)

	var vcErr *domain.VersionCheckError
	if !errors.As(err, &vcErr) {
		t.Fatalf("expected VersionCheckError, got %v", err)
	}
}

func TestListReleasesNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "test-agent", srv.URL)
	_, err := client.ListReleases(context.Background())

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}
