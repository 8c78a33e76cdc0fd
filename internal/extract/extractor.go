// Package extract turns raw items into falsifiable claim candidates.
// Extraction is idempotent per item: the dedupe key (normalized text +
// attribution + day bucket) guarantees re-running on the same item never
// creates duplicate claims.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/nlp"
	"github.com/veridexhq/veridex/internal/store"
)

// Attribution says who a raw item's claims belong to. Exactly one of
// SourceID or CreatorID is set.
type Attribution struct {
	SourceID  string
	CreatorID string
	VideoID   string
}

// Extractor produces claims from raw items.
type Extractor struct {
	store    store.Store
	provider nlp.Provider // optional; heuristics used when nil or failing
	floor    float64
	log      *slog.Logger
}

// NewExtractor wires an extractor. provider may be nil.
func NewExtractor(st store.Store, provider nlp.Provider, cfg config.ExtractConfig, log *slog.Logger) *Extractor {
	return &Extractor{
		store:    st,
		provider: provider,
		floor:    cfg.ConfidenceFloor,
		log:      log,
	}
}

// Extract derives claims from one raw item and stores the new ones.
// Candidates below the confidence floor or with zero specificity are
// discarded; that is data hygiene, not an error.
func (e *Extractor) Extract(ctx context.Context, raw model.RawItem, attr Attribution) ([]model.Claim, error) {
	candidates := e.candidates(ctx, raw)

	initial := model.StatusUnreviewed
	if attr.CreatorID != "" {
		initial = model.StatusPending
	}

	var added []model.Claim
	for _, cand := range candidates {
		cand = clamp(cand)
		if cand.Confidence < e.floor || cand.Specificity == 0 {
			continue
		}

		claim := model.Claim{
			ID:           uuid.NewString(),
			RawItemID:    raw.ID,
			SourceID:     attr.SourceID,
			CreatorID:    attr.CreatorID,
			VideoID:      attr.VideoID,
			Text:         strings.TrimSpace(cand.Text),
			Type:         cand.Type,
			AssetSymbols: cand.AssetSymbols,
			Specificity:  cand.Specificity,
			Confidence:   cand.Confidence,
			Timeframe:    cand.Timeframe,
			Hedged:       cand.Hedged,
			Status:       initial,
			ExtractedAt:  time.Now().UTC(),
		}
		claim.DedupeKey = DedupeKey(claim.Text, claim.EntityID(), raw.PublishedAt)

		ok, err := e.store.AddClaim(claim)
		if err != nil {
			return added, fmt.Errorf("store claim: %w", err)
		}
		if ok {
			added = append(added, claim)
		}
	}
	return added, nil
}

// candidates asks the provider first and falls back to the rule set.
func (e *Extractor) candidates(ctx context.Context, raw model.RawItem) []nlp.ClaimCandidate {
	if e.provider != nil {
		cands, err := e.provider.ExtractClaims(ctx, raw.Text)
		if err == nil {
			return cands
		}
		e.log.Warn("nlp extraction failed, falling back to rules",
			slog.String("item", raw.ID), slog.Any("err", err))
	}
	return heuristicCandidates(raw)
}

// heuristicCandidates runs the built-in rule set over the item text.
func heuristicCandidates(raw model.RawItem) []nlp.ClaimCandidate {
	var out []nlp.ClaimCandidate
	for _, sentence := range splitSentences(raw.Text) {
		claimType, ok := classify(sentence)
		if !ok {
			continue
		}
		assets := assetSymbols(sentence)
		tf := timeframe(sentence, raw.PublishedAt)
		spec := specificity(sentence, claimType, assets, tf)
		out = append(out, nlp.ClaimCandidate{
			Text:         sentence,
			Type:         claimType,
			AssetSymbols: assets,
			Specificity:  spec,
			Confidence:   confidence(sentence, claimType, spec),
			Timeframe:    tf,
			Hedged:       hedged(sentence),
		})
	}
	return out
}

// clamp forces provider output into documented ranges.
func clamp(c nlp.ClaimCandidate) nlp.ClaimCandidate {
	if c.Specificity < 0 {
		c.Specificity = 0
	}
	if c.Specificity > 10 {
		c.Specificity = 10
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}

// DedupeKey builds the idempotence key for a claim: normalized text,
// attributed entity, and the UTC day bucket of the item's publication.
func DedupeKey(text, entityID string, published time.Time) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	day := published.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(normalized + "|" + entityID + "|" + day))
	return hex.EncodeToString(sum[:])
}
