package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/logger"
)

const synthesizerSystemPrompt = "You are an expert on the ingested code repository. " +
	"Answer the user's question using only the provided context. " +
	"If the context does not contain the answer, say so instead of guessing."

// Synthesizer turns retrieved context and a question into a final
// natural-language answer. It is the last step of the query workflow.
type Synthesizer struct {
	aiClient ai.Client
}

func NewSynthesizer(aiClient ai.Client) *Synthesizer {
	return &Synthesizer{aiClient: aiClient}
}

func (a *Synthesizer) Name() string {
	return "synthesizer"
}

// Execute expects input {"question": string, "retrieved": any}, where
// "retrieved" is typically the unwrapped retriever result bound via a
// placeholder.
func (a *Synthesizer) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	question, _ := input["question"].(string)
	if question == "" {
		return errorResult("no question provided"), nil
	}

	contextJSON, err := json.MarshalIndent(input["retrieved"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal retrieved context: %w", err)
	}

	logger.Info("[Agents][Synthesizer] Synthesizing answer", "question", question)

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextJSON, question)
	answer, err := a.aiClient.GenerateCompletion(ctx, prompt, ai.WithSystemPrompts(synthesizerSystemPrompt))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return map[string]any{
		"status": StatusSuccess,
		"answer": answer,
	}, nil
}
