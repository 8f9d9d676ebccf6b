package agents

import (
	"context"
	"fmt"

	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/store"
)

// EntityLookup fetches entity records directly by ID or by type, without
// semantic search. It backs workflow steps that already know what they want.
type EntityLookup struct {
	knowledge *store.KnowledgeStore
}

func NewEntityLookup(knowledge *store.KnowledgeStore) *EntityLookup {
	return &EntityLookup{knowledge: knowledge}
}

func (a *EntityLookup) Name() string {
	return "entity_lookup"
}

// Execute expects input {"entity_id": string} or {"entity_type": string}.
// With neither it returns every entity.
func (a *EntityLookup) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if id, ok := input["entity_id"].(string); ok && id != "" {
		entity, err := a.knowledge.GetEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get entity %s: %w", id, err)
		}
		if entity == nil {
			return errorResult(fmt.Sprintf("entity %s not found", id)), nil
		}
		return map[string]any{
			"status":   StatusSuccess,
			"entities": []any{entityMap(*entity)},
		}, nil
	}

	var entities []common.Entity
	var err error
	if entityType, ok := input["entity_type"].(string); ok && entityType != "" {
		entities, err = a.knowledge.FindEntitiesByType(ctx, entityType)
	} else {
		entities, err = a.knowledge.GetAllEntities(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	listed := make([]any, 0, len(entities))
	for _, entity := range entities {
		listed = append(listed, entityMap(entity))
	}
	return map[string]any{
		"status":   StatusSuccess,
		"entities": listed,
	}, nil
}

func entityMap(entity common.Entity) map[string]any {
	return map[string]any{
		"id":      entity.UniqueID,
		"type":    entity.Type,
		"summary": entity.Summary,
		"details": entity.Details,
		"code":    entity.Code,
		"source":  entity.Source,
	}
}
