package agents

import (
	"context"
	"fmt"

	"github.com/reporover/backend/pkg/store"
)

// GraphQuery answers structural questions against the in-memory graph:
// callers and callees of an entity, or node lookup by label and property.
type GraphQuery struct {
	knowledge *store.KnowledgeStore
}

func NewGraphQuery(knowledge *store.KnowledgeStore) *GraphQuery {
	return &GraphQuery{knowledge: knowledge}
}

func (a *GraphQuery) Name() string {
	return "graph_query"
}

// Execute expects input {"entity_id": string, "direction": "callers"|"callees"}
// for traversal, or {"labels": [string], "properties": map} for node lookup.
func (a *GraphQuery) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if id, ok := input["entity_id"].(string); ok && id != "" {
		direction, _ := input["direction"].(string)
		var ids []string
		switch direction {
		case "callers":
			ids = a.knowledge.FindCallers(id)
		case "callees":
			ids = a.knowledge.FindCallees(id)
		default:
			return errorResult(fmt.Sprintf("unknown direction %q", direction)), nil
		}

		related := make([]any, 0, len(ids))
		for _, relatedID := range ids {
			related = append(related, relatedID)
		}
		return map[string]any{
			"status":     StatusSuccess,
			"entity_ids": related,
		}, nil
	}

	var labels []string
	if rawLabels, ok := input["labels"].([]any); ok {
		for _, raw := range rawLabels {
			if label, ok := raw.(string); ok {
				labels = append(labels, label)
			}
		}
	}
	properties, _ := input["properties"].(map[string]any)

	nodes := a.knowledge.FindNodes(labels, properties)
	found := make([]any, 0, len(nodes))
	for _, node := range nodes {
		found = append(found, map[string]any{
			"id":         node.ID,
			"type":       node.Type,
			"properties": node.Properties,
		})
	}
	return map[string]any{
		"status": StatusSuccess,
		"nodes":  found,
	}, nil
}
