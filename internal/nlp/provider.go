// Package nlp defines the contract with external language/search services.
// Only the input/output shapes matter to the pipeline: the extractor and
// gatherer work identically whether candidates come from a model or from
// the built-in heuristics.
package nlp

import (
	"context"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// ClaimCandidate is one falsifiable assertion proposed by a provider.
// Values outside their documented ranges are clamped by the extractor.
type ClaimCandidate struct {
	Text         string          `json:"text"`
	Type         model.ClaimType `json:"claim_type"`
	AssetSymbols []string        `json:"asset_symbols,omitempty"`
	Specificity  int             `json:"specificity"` // 0-10
	Confidence   float64         `json:"confidence"`  // 0-1
	Timeframe    *time.Time      `json:"timeframe,omitempty"`
	Hedged       bool            `json:"hedged,omitempty"`
}

// EvidenceHit is one candidate evidence reference for a claim.
type EvidenceHit struct {
	URL    string       `json:"url"`
	Title  string       `json:"title,omitempty"`
	Stance model.Stance `json:"stance"`
}

// Provider is an external NLP/search service.
type Provider interface {
	Name() string
	ExtractClaims(ctx context.Context, text string) ([]ClaimCandidate, error)
	SearchEvidence(ctx context.Context, claim model.Claim) ([]EvidenceHit, error)
}
