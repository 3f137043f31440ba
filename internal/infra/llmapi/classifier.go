package llmapi

import (
	"context"
	"fmt"

	"github.com/atenda/kb-rag/internal/core/triage"
)

// Classifier calls the label-classification endpoint.
type Classifier struct {
	client *Client
}

// NewClassifier creates a Classifier.
func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

type classifyRequest struct {
	Text      string              `json:"text"`
	LabelSets map[string][]string `json:"label_sets"`
}

type classifyResponse struct {
	Results map[string]struct {
		PredictedCategory string  `json:"predicted_category"`
		ConfidenceScore   float64 `json:"confidence_score"`
	} `json:"results"`
}

// Classify predicts one label per requested label set.
func (c *Classifier) Classify(ctx context.Context, text string, labelSets map[string][]string) (map[string]triage.Prediction, error) {
	var resp classifyResponse
	if err := c.client.doPost(ctx, c.client.cfg.CategorizePath, classifyRequest{Text: text, LabelSets: labelSets}, &resp); err != nil {
		return nil, fmt.Errorf("failed to classify text: %w", err)
	}

	predictions := make(map[string]triage.Prediction, len(resp.Results))
	for set, result := range resp.Results {
		predictions[set] = triage.Prediction{
			Label:      result.PredictedCategory,
			Confidence: result.ConfidenceScore,
		}
	}
	return predictions, nil
}
