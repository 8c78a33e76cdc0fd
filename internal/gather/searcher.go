package gather

import (
	"context"
	"regexp"
	"strings"

	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/nlp"
	"github.com/veridexhq/veridex/internal/store"
)

// Searcher proposes candidate evidence references for a claim.
type Searcher interface {
	Search(ctx context.Context, claim model.Claim) ([]nlp.EvidenceHit, error)
}

// ProviderSearcher delegates to the external NLP/search service.
type ProviderSearcher struct {
	provider nlp.Provider
}

// NewProviderSearcher wraps a provider as a Searcher.
func NewProviderSearcher(provider nlp.Provider) *ProviderSearcher {
	return &ProviderSearcher{provider: provider}
}

func (s *ProviderSearcher) Search(ctx context.Context, claim model.Claim) ([]nlp.EvidenceHit, error) {
	return s.provider.SearchEvidence(ctx, claim)
}

var linkRe = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// CitationSearcher mines the claim's originating raw item for outbound
// links: references the publisher itself cited. Always available, no
// external service needed.
type CitationSearcher struct {
	store store.Store
}

// NewCitationSearcher builds the citation-link searcher.
func NewCitationSearcher(st store.Store) *CitationSearcher {
	return &CitationSearcher{store: st}
}

func (s *CitationSearcher) Search(ctx context.Context, claim model.Claim) ([]nlp.EvidenceHit, error) {
	if claim.RawItemID == "" {
		return nil, nil
	}
	raw, err := s.store.RawItemByID(claim.RawItemID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hits []nlp.EvidenceHit
	for _, link := range linkRe.FindAllString(raw.Text, -1) {
		link = strings.TrimRight(link, ".,;")
		if seen[link] || link == raw.URL {
			continue
		}
		seen[link] = true
		// Stance is resolved later from the fetched document.
		hits = append(hits, nlp.EvidenceHit{URL: link})
	}
	return hits, nil
}

// MultiSearcher concatenates results from several searchers, first hit per
// URL wins.
type MultiSearcher struct {
	searchers []Searcher
}

// NewMultiSearcher combines searchers in priority order.
func NewMultiSearcher(searchers ...Searcher) *MultiSearcher {
	return &MultiSearcher{searchers: searchers}
}

func (s *MultiSearcher) Search(ctx context.Context, claim model.Claim) ([]nlp.EvidenceHit, error) {
	seen := make(map[string]bool)
	var out []nlp.EvidenceHit
	var lastErr error
	for _, searcher := range s.searchers {
		hits, err := searcher.Search(ctx, claim)
		if err != nil {
			lastErr = err
			continue
		}
		for _, h := range hits {
			if !seen[h.URL] {
				seen[h.URL] = true
				out = append(out, h)
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
