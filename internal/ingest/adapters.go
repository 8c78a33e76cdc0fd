package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// item is a parsed-but-unstored raw item; the collector assigns ids and
// applies dedupe.
type item struct {
	ExternalID  string
	URL         string
	Text        string
	PublishedAt time.Time
}

// Adapter normalizes one source kind's payload into items.
type Adapter interface {
	Parse(body string, src model.Source, fetchedAt time.Time) ([]item, error)
}

// adapterFor selects the adapter for a source kind.
func adapterFor(kind model.SourceKind) (Adapter, error) {
	switch kind {
	case model.SourcePublisher:
		return publisherAdapter{}, nil
	case model.SourceRegulator:
		return regulatorAdapter{}, nil
	case model.SourceSocial:
		return socialAdapter{}, nil
	default:
		return nil, fmt.Errorf("no adapter for source kind %q", kind)
	}
}

// publisherAdapter treats the fetched page as one item whose identity is
// the hash of its visible text, so an unchanged page never re-emits.
type publisherAdapter struct{}

func (publisherAdapter) Parse(body string, src model.Source, fetchedAt time.Time) ([]item, error) {
	text, err := visibleText(body)
	if err != nil {
		return nil, fmt.Errorf("parse publisher html: %w", err)
	}
	if text == "" {
		return nil, nil
	}
	sum := sha256.Sum256([]byte(text))
	return []item{{
		ExternalID:  hex.EncodeToString(sum[:]),
		URL:         src.URL,
		Text:        text,
		PublishedAt: fetchedAt,
	}}, nil
}

// regulatorEntry is the JSON shape regulator feeds publish.
type regulatorEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

type regulatorAdapter struct{}

func (regulatorAdapter) Parse(body string, src model.Source, fetchedAt time.Time) ([]item, error) {
	var entries []regulatorEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("parse regulator feed: %w", err)
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" && e.URL == "" {
			continue
		}
		text := e.Title
		if e.Body != "" {
			text += "\n" + e.Body
		}
		published := e.PublishedAt
		if published.IsZero() {
			published = fetchedAt
		}
		items = append(items, item{
			ExternalID:  e.ID,
			URL:         e.URL,
			Text:        text,
			PublishedAt: published,
		})
	}
	return items, nil
}

// socialPost is the JSON shape social handle timelines publish.
type socialPost struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type socialAdapter struct{}

func (socialAdapter) Parse(body string, src model.Source, fetchedAt time.Time) ([]item, error) {
	var posts []socialPost
	if err := json.Unmarshal([]byte(body), &posts); err != nil {
		return nil, fmt.Errorf("parse social timeline: %w", err)
	}
	items := make([]item, 0, len(posts))
	for _, p := range posts {
		if p.Text == "" {
			continue
		}
		created := p.CreatedAt
		if created.IsZero() {
			created = fetchedAt
		}
		items = append(items, item{
			ExternalID:  p.ID,
			URL:         p.URL,
			Text:        p.Text,
			PublishedAt: created,
		})
	}
	return items, nil
}
