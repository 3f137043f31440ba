package llmapi

import (
	"context"
	"fmt"
)

// KeywordExtractor calls the keyword extraction endpoint.
type KeywordExtractor struct {
	client *Client
}

// NewKeywordExtractor creates a KeywordExtractor.
func NewKeywordExtractor(client *Client) *KeywordExtractor {
	return &KeywordExtractor{client: client}
}

type keywordsRequest struct {
	Text string `json:"text"`
}

type keywordsResponse struct {
	Keywords []string `json:"keywords"`
}

// ExtractKeywords returns the salient keywords of the text. Errors propagate;
// the caller decides whether extraction is degradable in its flow.
func (k *KeywordExtractor) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	var resp keywordsResponse
	if err := k.client.doPost(ctx, k.client.cfg.KeywordsPath, keywordsRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("failed to extract keywords: %w", err)
	}
	return resp.Keywords, nil
}
