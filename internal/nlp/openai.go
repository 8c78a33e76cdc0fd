package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
)

const extractSystemPrompt = `You extract falsifiable claims from crypto/finance text.
Return a JSON array; each element:
{"text": "...", "claim_type": one of [price_prediction, partnership_announced,
regulatory_action, filing_submitted, exploit_or_hack, mainnet_launch,
technology_claim, market_claim, rumor, misc_claim],
"asset_symbols": ["BTC"], "specificity": 0-10, "confidence": 0.0-1.0,
"hedged": bool}.
Only include statements that could in principle be verified or falsified.
Return [] if there are none. No prose, JSON only.`

const searchSystemPrompt = `You are given one claim. Suggest up to 8 public URLs that
would support, contradict, or contextualize it. Return a JSON array of
{"url": "...", "title": "...", "stance": "supports"|"contradicts"|"neutral"}.
Prefer regulators, filings, and major outlets. No prose, JSON only.`

// OpenAI implements Provider on the Chat Completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewOpenAI builds the provider from config. The API key is required.
func NewOpenAI(cfg config.NLPConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an api key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	mdl := cfg.Model
	if mdl == "" {
		mdl = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     mdl,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Name returns the provider name.
func (p *OpenAI) Name() string { return "openai" }

// ExtractClaims asks the model for claim candidates in the document text.
func (p *OpenAI) ExtractClaims(ctx context.Context, text string) ([]ClaimCandidate, error) {
	raw, err := p.complete(ctx, extractSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	var candidates []ClaimCandidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	out := candidates[:0]
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if !validClaimType(c.Type) {
			c.Type = model.ClaimMisc
		}
		out = append(out, c)
	}
	return out, nil
}

// SearchEvidence asks the model for candidate evidence references.
func (p *OpenAI) SearchEvidence(ctx context.Context, claim model.Claim) ([]EvidenceHit, error) {
	prompt := fmt.Sprintf("Claim (%s): %s", claim.Type, claim.Text)
	if len(claim.AssetSymbols) > 0 {
		prompt += "\nAssets: " + strings.Join(claim.AssetSymbols, ", ")
	}
	raw, err := p.complete(ctx, searchSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	var hits []EvidenceHit
	if err := json.Unmarshal([]byte(raw), &hits); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	out := hits[:0]
	for _, h := range hits {
		if !strings.HasPrefix(h.URL, "http") {
			continue
		}
		switch h.Stance {
		case model.StanceSupports, model.StanceContradicts, model.StanceNeutral:
		default:
			h.Stance = model.StanceNeutral
		}
		out = append(out, h)
	}
	return out, nil
}

func (p *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func validClaimType(t model.ClaimType) bool {
	for _, known := range model.ClaimTypes {
		if t == known {
			return true
		}
	}
	return false
}
