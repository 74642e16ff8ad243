package scryfall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mmrzaf/cardbase/internal/domain"
)

// priceBatchSize is the identifier cap per /cards/collection request imposed
// by the API.
const priceBatchSize = 75

type Client struct {
	http        *http.Client
	userAgent   string
	bulkMetaURL string
	priceURL    string
}

func NewClient(httpClient *http.Client, userAgent, bulkMetaURL, priceURL string) *Client {
	return &Client{
		http:        httpClient,
		userAgent:   userAgent,
		bulkMetaURL: bulkMetaURL,
		priceURL:    priceURL,
	}
}

// ListBulkData fetches the bulk-metadata listing: every available dataset
// with its download URI and freshness marker.
func (c *Client) ListBulkData(ctx context.Context) ([]domain.BulkSource, error) {
	body, err := c.get(ctx, c.bulkMetaURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var listing struct {
		Data []domain.BulkSource `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode bulk listing: %w", err)
	}
	if len(listing.Data) == 0 {
		return nil, &domain.VersionCheckError{Reason: "bulk listing has no entries"}
	}
	for _, src := range listing.Data {
		if src.UpdatedAt == "" || src.DownloadURI == "" {
			return nil, &domain.VersionCheckError{Reason: "bulk entry missing updated_at or download_uri: " + src.Type}
		}
	}
	return listing.Data, nil
}

// FindBulkSource returns the listing entry with the given type.
func FindBulkSource(sources []domain.BulkSource, typ string) (domain.BulkSource, error) {
	for _, src := range sources {
		if src.Type == typ {
			return src, nil
		}
	}
	return domain.BulkSource{}, &domain.VersionCheckError{Reason: "bulk listing missing source " + typ}
}

type priceIdentifier struct {
	Set             string `json:"set,omitempty"`
	CollectorNumber string `json:"collector_number,omitempty"`
	Name            string `json:"name,omitempty"`
}

type PricedCard struct {
	Name            string            `json:"name"`
	Set             string            `json:"set"`
	CollectorNumber string            `json:"collector_number"`
	Prices          domain.PricePoint `json:"prices"`
}

// LookupPrices resolves current prices for the given collection items,
// batching identifiers to the API cap. Items with a recorded printing are
// looked up by (set, collector_number); the rest fall back to the bare name.
// Cards the vendor does not know are absent from the result, not an error.
func (c *Client) LookupPrices(ctx context.Context, items []domain.CollectionItem) ([]PricedCard, error) {
	var out []PricedCard
	for start := 0; start < len(items); start += priceBatchSize {
		end := start + priceBatchSize
		if end > len(items) {
			end = len(items)
		}

		ids := make([]priceIdentifier, 0, end-start)
		for _, it := range items[start:end] {
			if it.SetCode != "" && it.CollectorNumber != "" {
				ids = append(ids, priceIdentifier{Set: it.SetCode, CollectorNumber: it.CollectorNumber})
			} else {
				ids = append(ids, priceIdentifier{Name: it.Name})
			}
		}

		batch, err := c.postCollection(ctx, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) postCollection(ctx context.Context, ids []priceIdentifier) ([]PricedCard, error) {
	payload, err := json.Marshal(map[string]interface{}{"identifiers": ids})
	if err != nil {
		return nil, fmt.Errorf("encode price lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.priceURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build price lookup request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "POST", URL: c.priceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{Op: "POST", URL: c.priceURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body struct {
		Data []PricedCard `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price lookup response: %w", err)
	}
	return body.Data, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "GET", URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &domain.NetworkError{Op: "GET", URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp.Body, nil
}
