// Package usgs fetches the live earthquake feed and maps it onto the
// canonical event table.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/observability"
)

// Client fetches the USGS GeoJSON summary feed.
//
// Fetch degrades to an empty table on any transport, status, or parse
// failure: the dashboard renders a neutral "no data" state instead of an
// error, and the outage shows up only in logs and metrics.
type Client struct {
	feedURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	fetchedOnce atomic.Bool
}

// NewClient creates a feed client with an explicit request timeout so a slow
// upstream cannot hang an interactive session.
func NewClient(feedURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch returns the current feed as an EventTable. The error is always nil;
// failures yield an empty table.
func (c *Client) Fetch(ctx context.Context) (domain.EventTable, error) {
	table, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("feed fetch degraded to empty table", "url", c.feedURL, "error", err)
		c.metrics.FeedFetches.WithLabelValues("degraded").Inc()
		return domain.EventTable{}, nil
	}

	c.fetchedOnce.Store(true)
	c.metrics.FeedFetches.WithLabelValues("success").Inc()
	c.metrics.FeedEvents.Set(float64(table.Len()))
	return table, nil
}

// CheckReadiness reports whether at least one feed fetch has succeeded since boot.
func (c *Client) CheckReadiness(_ context.Context) error {
	if !c.fetchedOnce.Load() {
		return errors.New("no successful feed fetch yet")
	}
	return nil
}

func (c *Client) fetch(ctx context.Context) (domain.EventTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return domain.EventTable{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SeismicGuard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EventTable{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.EventTable{}, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return domain.EventTable{}, fmt.Errorf("decode feed: %w", err)
	}

	records := make([]domain.EventRecord, 0, len(feed.Features))
	for _, f := range feed.Features {
		// The feed occasionally carries features with a null magnitude or a
		// truncated coordinate triple; those cannot populate the canonical
		// fields and are skipped.
		if f.Properties.Mag == nil || len(f.Geometry.Coordinates) < 3 {
			continue
		}
		records = append(records, domain.EventRecord{
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Magnitude: *f.Properties.Mag,
			Location:  f.Properties.Place,
			Lon:       f.Geometry.Coordinates[0],
			Lat:       f.Geometry.Coordinates[1],
			Depth:     f.Geometry.Coordinates[2],
		})
	}

	return domain.NewEventTable(records), nil
}

// USGS GeoJSON feed types.

type feedResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type properties struct {
	Mag   *float64 `json:"mag"`
	Place string   `json:"place"`
	Time  int64    `json:"time"` // epoch milliseconds
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}
