// Package ingest fetches new raw items per monitored source. A fetch
// failure for one source is recorded against that source only; the run
// continues for the rest.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/veridexhq/veridex/internal/fetch"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// Collector turns monitored sources into stored RawItems.
type Collector struct {
	fetcher *fetch.Fetcher
	store   store.Store
	recent  *gocache.Cache // short-lived dedupe window in front of the store
	log     *slog.Logger
}

// NewCollector wires a collector against the shared fetcher and store.
func NewCollector(fetcher *fetch.Fetcher, st store.Store, log *slog.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		store:   st,
		recent:  gocache.New(time.Hour, 2*time.Hour),
		log:     log,
	}
}

// Collect fetches everything the source published since its watermark,
// stores the new items, and advances the watermark on success. Returned
// items are only the ones actually added this call.
func (c *Collector) Collect(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	since, _ := c.store.Watermark(src.ID)

	adapter, err := adapterFor(src.Kind)
	if err != nil {
		return nil, err
	}

	result, err := c.fetcher.Get(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", src.ID, err)
	}

	parsed, err := adapter.Parse(result.Body, src, result.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("normalize source %s: %w", src.ID, err)
	}

	var added []model.RawItem
	for _, it := range parsed {
		if !since.IsZero() && !it.PublishedAt.After(since) {
			continue
		}
		key := it.ExternalID
		if key == "" {
			key = urlHash(it.URL)
		}
		cacheKey := src.ID + "|" + key
		if _, dup := c.recent.Get(cacheKey); dup {
			continue
		}
		if c.store.HasRawItem(src.ID, key) {
			c.recent.Set(cacheKey, struct{}{}, gocache.DefaultExpiration)
			continue
		}

		raw := model.RawItem{
			ID:          uuid.NewString(),
			SourceID:    src.ID,
			ExternalID:  key,
			URL:         it.URL,
			Text:        it.Text,
			PublishedAt: it.PublishedAt,
			FetchedAt:   result.FetchedAt,
		}
		ok, err := c.store.AddRawItem(raw)
		if err != nil {
			return added, fmt.Errorf("store raw item: %w", err)
		}
		if !ok {
			continue
		}
		c.recent.Set(cacheKey, struct{}{}, gocache.DefaultExpiration)
		added = append(added, raw)
	}

	if err := c.store.SetWatermark(src.ID, result.FetchedAt); err != nil {
		return added, fmt.Errorf("advance watermark: %w", err)
	}

	c.log.Debug("collected source",
		slog.String("source", src.ID),
		slog.Int("parsed", len(parsed)),
		slog.Int("new", len(added)))
	return added, nil
}

func urlHash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}
