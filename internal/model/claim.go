package model

import "time"

// ClaimType categorizes the nature of a claim. The enum is closed: the
// verdict engine handles every member exhaustively and anything that does
// not fit a specific type lands in ClaimMisc.
type ClaimType string

const (
	ClaimPricePrediction      ClaimType = "price_prediction"
	ClaimPartnershipAnnounced ClaimType = "partnership_announced"
	ClaimRegulatoryAction     ClaimType = "regulatory_action"
	ClaimFilingSubmitted      ClaimType = "filing_submitted"
	ClaimExploitOrHack        ClaimType = "exploit_or_hack"
	ClaimMainnetLaunch        ClaimType = "mainnet_launch"
	ClaimTechnology           ClaimType = "technology_claim"
	ClaimMarket               ClaimType = "market_claim"
	ClaimRumor                ClaimType = "rumor"
	ClaimMisc                 ClaimType = "misc_claim"
)

// ClaimTypes lists every member of the closed enum.
var ClaimTypes = []ClaimType{
	ClaimPricePrediction,
	ClaimPartnershipAnnounced,
	ClaimRegulatoryAction,
	ClaimFilingSubmitted,
	ClaimExploitOrHack,
	ClaimMainnetLaunch,
	ClaimTechnology,
	ClaimMarket,
	ClaimRumor,
	ClaimMisc,
}

// Category is the accuracy bucket a claim counts toward when scoring a
// creator. There are exactly six.
type Category string

const (
	CategoryPrice       Category = "price"
	CategoryTimeline    Category = "timeline"
	CategoryRegulatory  Category = "regulatory"
	CategoryPartnership Category = "partnership"
	CategoryTechnology  Category = "technology"
	CategoryMarket      Category = "market"
)

// Category maps a claim type onto its scoring bucket.
func (t ClaimType) Category() Category {
	switch t {
	case ClaimPricePrediction:
		return CategoryPrice
	case ClaimRegulatoryAction, ClaimFilingSubmitted:
		return CategoryRegulatory
	case ClaimPartnershipAnnounced:
		return CategoryPartnership
	case ClaimMainnetLaunch, ClaimTechnology, ClaimExploitOrHack:
		return CategoryTechnology
	case ClaimMarket, ClaimRumor, ClaimMisc:
		return CategoryMarket
	default:
		return CategoryMarket
	}
}

// ClaimStatus tracks a claim through its review lifecycle. Source claims
// move unreviewed -> needs_evidence -> reviewed -> resolved. Creator claims
// move pending -> one of the terminal creator states.
type ClaimStatus string

const (
	StatusUnreviewed    ClaimStatus = "unreviewed"
	StatusNeedsEvidence ClaimStatus = "needs_evidence"
	StatusReviewed      ClaimStatus = "reviewed"
	StatusResolved      ClaimStatus = "resolved"

	StatusPending       ClaimStatus = "pending"
	StatusVerifiedTrue  ClaimStatus = "verified_true"
	StatusVerifiedFalse ClaimStatus = "verified_false"
	StatusPartiallyTrue ClaimStatus = "partially_true"
	StatusUnverifiable  ClaimStatus = "unverifiable"
	StatusExpired       ClaimStatus = "expired"
)

// Terminal reports whether no further status transition is allowed.
func (s ClaimStatus) Terminal() bool {
	switch s {
	case StatusResolved, StatusVerifiedTrue, StatusVerifiedFalse,
		StatusPartiallyTrue, StatusUnverifiable, StatusExpired:
		return true
	}
	return false
}

// Open reports whether the claim is still eligible for evidence gathering
// and re-evaluation. Reviewed claims stay open: evidence keeps accumulating
// across runs until a closing event resolves the claim or it expires.
func (s ClaimStatus) Open() bool {
	return s == StatusUnreviewed || s == StatusNeedsEvidence ||
		s == StatusReviewed || s == StatusPending
}

// Claim is a single falsifiable assertion extracted from a raw item or a
// creator video. Claim text is immutable after resolution; corrections
// create a new claim pointing back via SupersedesID.
type Claim struct {
	ID        string `json:"id"`
	RawItemID string `json:"raw_item_id,omitempty"`

	// Exactly one of SourceID or CreatorID is set.
	SourceID  string `json:"source_id,omitempty"`
	CreatorID string `json:"creator_id,omitempty"`
	VideoID   string `json:"video_id,omitempty"`

	Text         string      `json:"text"`
	Type         ClaimType   `json:"claim_type"`
	AssetSymbols []string    `json:"asset_symbols,omitempty"` // sorted, unique
	Specificity  int         `json:"specificity_score"`       // 0-10
	Confidence   float64     `json:"extraction_confidence"`   // 0-1
	Timeframe    *time.Time  `json:"stated_timeframe,omitempty"`
	Status       ClaimStatus `json:"status"`

	// DedupeKey is sha256(normalized text + attribution + day bucket);
	// re-extraction of the same item never duplicates a claim.
	DedupeKey string `json:"dedupe_key"`

	SupersedesID string `json:"supersedes_id,omitempty"` // correction chain
	Hedged       bool   `json:"hedged,omitempty"`        // hedging language detected
	GatherError  string `json:"gather_error,omitempty"`
	ManualReview bool   `json:"manual_review,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// IsCreatorClaim reports whether the claim is attributed to a video creator
// rather than a monitored source.
func (c Claim) IsCreatorClaim() bool {
	return c.CreatorID != ""
}

// EntityID returns the id of whichever entity the claim is attributed to.
func (c Claim) EntityID() string {
	if c.CreatorID != "" {
		return c.CreatorID
	}
	return c.SourceID
}
