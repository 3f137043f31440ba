package llmapi

import (
	"context"
	"strings"
)

// noAnswerSentinels mark a generation the model itself judged unanswerable.
var noAnswerSentinels = []string{"[NO_ANSWER]", "**NO_ANSWER**"}

// GenerationErrorAnswer is returned when the generation service fails.
const GenerationErrorAnswer = "Desculpe, não consegui processar a resposta no momento."

// NoAnswerFallback is returned when the model declines to answer.
const NoAnswerFallback = "Não encontrei informações sobre isso em minha base de conhecimento. Para sugerir sua dúvida à nossa equipe, clique no botão 'Não' abaixo e sua dúvida será encaminhada e analisada."

// Generator calls the generation endpoint and maps its sentinel and failure
// modes to the fallback contract.
type Generator struct {
	client *Client
}

// NewGenerator creates a Generator.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type generateRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type generateResponse struct {
	Answer string `json:"answer"`
}

// Generate produces an answer from the question and its retrieved context.
// Service failure and the model's no-answer sentinels both surface as fixed
// messages with isFallback set; the caller never sees an error.
func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, bool) {
	result, err := g.client.generateBreaker.Execute(func() (any, error) {
		var resp generateResponse
		if err := g.client.doPost(ctx, g.client.cfg.GeneratePath, generateRequest{Question: question, Context: contextText}, &resp); err != nil {
			return nil, err
		}
		return resp.Answer, nil
	})
	if err != nil {
		g.client.logger.Error("generation service call failed", "error", err)
		return GenerationErrorAnswer, true
	}

	answer := result.(string)
	for _, sentinel := range noAnswerSentinels {
		if strings.HasPrefix(answer, sentinel) {
			return NoAnswerFallback, true
		}
	}
	return answer, false
}
