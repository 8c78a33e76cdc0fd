package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// typeRule maps trigger keywords onto a claim type. Rules are ordered:
// the first matching rule classifies the sentence.
type typeRule struct {
	claimType model.ClaimType
	keywords  []string
}

var typeRules = []typeRule{
	{model.ClaimRegulatoryAction, []string{
		"sec charged", "sec sued", "lawsuit filed", "enforcement action",
		"regulator", "fined", "sanctioned", "cease and desist", "subpoena",
	}},
	{model.ClaimFilingSubmitted, []string{
		"filed an s-1", "filed a 10-k", "etf filing", "s-1 filing",
		"registration statement", "submitted a filing", "filed with the sec",
	}},
	{model.ClaimExploitOrHack, []string{
		"exploit", "hacked", "hack of", "drained", "stolen funds",
		"vulnerability", "breach", "rug pull",
	}},
	{model.ClaimPartnershipAnnounced, []string{
		"partnership with", "partnered with", "teamed up with",
		"collaboration with", "integration with", "signed a deal",
	}},
	{model.ClaimMainnetLaunch, []string{
		"mainnet launch", "mainnet goes live", "launched its mainnet",
		"testnet launch", "network upgrade", "hard fork",
	}},
	{model.ClaimPricePrediction, []string{
		"will reach", "will hit", "price target", "could reach",
		"is going to", "will trade at", "by the end of", "to the moon",
	}},
	{model.ClaimTechnology, []string{
		"transactions per second", "protocol upgrade", "new consensus",
		"zero-knowledge", "scaling solution", "smart contract",
	}},
	{model.ClaimMarket, []string{
		"market cap", "trading volume", "all-time high", "outperform",
		"institutional buying", "inflows", "liquidations",
	}},
	{model.ClaimRumor, []string{
		"rumor", "rumour", "unconfirmed", "allegedly", "insider says",
		"sources say", "leaked",
	}},
}

var hedgeTerms = []string{
	"might", "could", "possibly", "maybe", "perhaps", "i think",
	"allegedly", "reportedly", "not financial advice", "in my opinion",
	"seems like", "potentially",
}

// knownSymbols anchors ticker recognition; the $TICKER pattern covers the
// long tail.
var knownSymbols = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "ADA": true,
	"DOGE": true, "DOT": true, "AVAX": true, "LINK": true, "MATIC": true,
	"BNB": true, "USDT": true, "USDC": true, "ATOM": true, "ARB": true,
	"OP": true, "SUI": true, "APT": true, "TON": true, "NEAR": true,
}

var (
	dollarSymbolRe = regexp.MustCompile(`\$([A-Z]{2,6})\b`)
	bareSymbolRe   = regexp.MustCompile(`\b([A-Z]{2,6})\b`)
	numberRe       = regexp.MustCompile(`\b\d[\d,]*(\.\d+)?\b`)
	percentRe      = regexp.MustCompile(`\d+(\.\d+)?\s?%`)
	priceRe        = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d+)?[kKmMbB]?\b`)

	quarterRe = regexp.MustCompile(`(?i)\b(?:in|by)\s+Q([1-4])\s+(\d{4})\b`)
	monthRe   = regexp.MustCompile(`(?i)\bby\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})\b`)
	yearEndRe = regexp.MustCompile(`(?i)\bby\s+(?:the\s+)?end\s+of\s+(\d{4})\b`)
	withinRe  = regexp.MustCompile(`(?i)\bwithin\s+(\d+)\s+(day|week|month)s?\b`)
)

var monthIndex = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// classify returns the claim type the sentence matches, or false when no
// rule fires (a non-claim sentence).
func classify(sentence string) (model.ClaimType, bool) {
	lower := strings.ToLower(sentence)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.claimType, true
			}
		}
	}
	return "", false
}

// assetSymbols extracts referenced tickers, sorted and unique.
func assetSymbols(sentence string) []string {
	set := make(map[string]bool)
	for _, m := range dollarSymbolRe.FindAllStringSubmatch(sentence, -1) {
		set[m[1]] = true
	}
	for _, m := range bareSymbolRe.FindAllStringSubmatch(sentence, -1) {
		if knownSymbols[m[1]] {
			set[m[1]] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// specificity scores how falsifiable a sentence is, 0-10. A statement with
// no measurable anchor scores 0 and is discarded upstream.
func specificity(sentence string, claimType model.ClaimType, assets []string, timeframe *time.Time) int {
	score := 0
	if numberRe.MatchString(sentence) {
		score += 2
	}
	if priceRe.MatchString(sentence) {
		score += 2
	}
	if percentRe.MatchString(sentence) {
		score++
	}
	if len(assets) > 0 {
		score += 2
	}
	if timeframe != nil {
		score += 2
	}
	switch claimType {
	case model.ClaimRegulatoryAction, model.ClaimFilingSubmitted, model.ClaimExploitOrHack:
		// These name a discrete event that either happened or did not.
		score += 2
	case model.ClaimRumor:
		score--
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score
}

// confidence estimates how sure the rule extraction is that the sentence is
// a real claim, 0-1.
func confidence(sentence string, claimType model.ClaimType, spec int) float64 {
	c := 0.45
	c += float64(spec) * 0.04
	if claimType == model.ClaimRumor {
		c -= 0.15
	}
	words := len(strings.Fields(sentence))
	if words < 6 {
		c -= 0.2
	}
	if words > 80 {
		c -= 0.1
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// hedged reports whether the sentence uses hedging language.
func hedged(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, term := range hedgeTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// timeframe extracts a stated deadline from the sentence, relative to the
// item's publication time for "within N ..." phrasing.
func timeframe(sentence string, published time.Time) *time.Time {
	if m := quarterRe.FindStringSubmatch(sentence); m != nil {
		q := int(m[1][0] - '0')
		year := atoi(m[2])
		t := time.Date(year, time.Month(q*3), 1, 0, 0, 0, 0, time.UTC)
		t = t.AddDate(0, 1, -1) // last day of the quarter
		return &t
	}
	if m := monthRe.FindStringSubmatch(sentence); m != nil {
		month := monthIndex[strings.ToLower(m[1])]
		year := atoi(m[2])
		t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
		return &t
	}
	if m := yearEndRe.FindStringSubmatch(sentence); m != nil {
		t := time.Date(atoi(m[1]), time.December, 31, 0, 0, 0, 0, time.UTC)
		return &t
	}
	if m := withinRe.FindStringSubmatch(sentence); m != nil {
		n := atoi(m[1])
		var t time.Time
		switch strings.ToLower(m[2]) {
		case "day":
			t = published.AddDate(0, 0, n)
		case "week":
			t = published.AddDate(0, 0, 7*n)
		case "month":
			t = published.AddDate(0, n, 0)
		}
		return &t
	}
	return nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// splitSentences breaks text on sentence terminators, keeping only spans
// long enough to carry a claim.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder
	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				if s := strings.TrimSpace(current.String()); len(s) >= 25 && len(s) <= 600 {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) >= 25 && len(s) <= 600 {
		sentences = append(sentences, s)
	}
	return sentences
}
