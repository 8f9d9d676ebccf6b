package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"
)

const defaultRetrievalK = 5

// Retriever answers a question by running hybrid search over the knowledge
// store and collecting the enriched entity records.
type Retriever struct {
	knowledge *store.KnowledgeStore
}

func NewRetriever(knowledge *store.KnowledgeStore) *Retriever {
	return &Retriever{knowledge: knowledge}
}

func (a *Retriever) Name() string {
	return "information_retriever"
}

// Execute expects input {"question": string, "k": number?} and returns
// {"status", "collected_data": [entity maps], "final_output": string}.
func (a *Retriever) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	question, _ := input["question"].(string)
	if question == "" {
		return errorResult("no question provided"), nil
	}

	k := defaultRetrievalK
	switch typed := input["k"].(type) {
	case int:
		k = typed
	case float64:
		k = int(typed)
	}

	logger.Info("[Agents][Retriever] Retrieving context", "question", question, "k", k)

	entities, err := a.knowledge.HybridSearch(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	collected := make([]any, 0, len(entities))
	var summary strings.Builder
	for _, entity := range entities {
		collected = append(collected, map[string]any{
			"id":      entity.UniqueID,
			"type":    entity.Type,
			"summary": entity.Summary,
			"details": entity.Details,
			"code":    entity.Code,
			"source":  entity.Source,
		})
		fmt.Fprintf(&summary, "- %s (%s): %s\n", entity.UniqueID, entity.Type, entity.Summary)
	}

	return map[string]any{
		"status":         StatusSuccess,
		"collected_data": collected,
		"final_output":   summary.String(),
	}, nil
}
