package llmapi

import (
	"context"
	"fmt"
)

// ContextChecker calls the lightweight similarity and relevance check
// endpoints used to validate retrieved context against the question.
type ContextChecker struct {
	client *Client
}

// NewContextChecker creates a ContextChecker.
func NewContextChecker(client *Client) *ContextChecker {
	return &ContextChecker{client: client}
}

type similarityRequest struct {
	Question   string   `json:"question"`
	Paragraphs []string `json:"paragraphs"`
}

type relevanceRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type boolResponse struct {
	Result bool `json:"result"`
}

// CheckSimilarity reports whether the retrieved paragraphs are close enough to
// the question at the embedding level.
func (c *ContextChecker) CheckSimilarity(ctx context.Context, question string, paragraphs []string) (bool, error) {
	var resp boolResponse
	if err := c.client.doPost(ctx, c.client.cfg.SimilarityPath, similarityRequest{Question: question, Paragraphs: paragraphs}, &resp); err != nil {
		return false, fmt.Errorf("similarity check request failed: %w", err)
	}
	return resp.Result, nil
}

// CheckRelevance reports whether the context is topically relevant to the
// question.
func (c *ContextChecker) CheckRelevance(ctx context.Context, question, contextText string) (bool, error) {
	var resp boolResponse
	if err := c.client.doPost(ctx, c.client.cfg.RelevancePath, relevanceRequest{Question: question, Context: contextText}, &resp); err != nil {
		return false, fmt.Errorf("relevance check request failed: %w", err)
	}
	return resp.Result, nil
}
