package store

import (
	"context"
	"maps"

	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
)

// KnowledgeStore is the single write/read facade over the three leaf stores.
// It owns the consistency policy for multi-store writes and the hybrid
// search algorithm. Writes are not atomic across the stores: a failure in
// one store after another has succeeded leaves a partially written entity,
// which is logged and reported through the boolean return of AddEntity.
type KnowledgeStore struct {
	entities EntityStore
	graph    GraphStore
	vectors  VectorIndex
}

// NewKnowledgeStore creates a manager over the given leaf stores. The
// manager does not take ownership of Close; the caller that constructed the
// stores shuts them down.
func NewKnowledgeStore(entities EntityStore, graph GraphStore, vectors VectorIndex) *KnowledgeStore {
	return &KnowledgeStore{
		entities: entities,
		graph:    graph,
		vectors:  vectors,
	}
}

// AddEntity writes the same logical entity into all three stores: a node
// into the graph, a document into the vector index, and a record into the
// entity store. It returns true only if every store write succeeded. Any
// individual store failure is logged and turns the result false, but writes
// already committed to other stores are not rolled back. Re-adding an
// existing ID overwrites it in all three stores.
func (s *KnowledgeStore) AddEntity(
	ctx context.Context,
	id string,
	entityType string,
	content string,
	properties map[string]any,
	embedding []float32,
) bool {
	ok := true

	s.graph.CreateNode(common.Node{
		ID:         id,
		Type:       entityType,
		Properties: properties,
	})

	metadata := make(map[string]any, len(properties)+1)
	maps.Copy(metadata, properties)
	metadata["type"] = entityType

	err := s.vectors.AddDocuments(ctx, []common.VectorDocument{{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	}})
	if err != nil {
		logger.Error("[Knowledge][AddEntity] Vector index write failed", "id", id, "error", err)
		ok = false
	}

	err = s.entities.AddEntity(ctx, common.Entity{
		UniqueID: id,
		Type:     entityType,
		Summary:  stringProp(properties, "summary"),
		Details:  content,
		Code:     stringProp(properties, "code"),
		Source:   stringProp(properties, "file_path"),
	})
	if err != nil {
		logger.Error("[Knowledge][AddEntity] Entity store write failed", "id", id, "error", err)
		ok = false
	}

	return ok
}

// AddRelationship inserts a directed edge into the graph. There is no
// existence check on the endpoints and no deduplication: dangling references
// (e.g. unresolved imports) and duplicate edges are tolerated.
func (s *KnowledgeStore) AddRelationship(sourceID, targetID, relType string, properties map[string]any) {
	s.graph.CreateRelationship(common.Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Properties: properties,
	})
}

// HybridSearch combines semantic and structural retrieval: the top-k vector
// matches seed the result, which is expanded one graph hop in both call
// directions, then hydrated from the entity store. IDs the entity store does
// not know are silently dropped (the graph may reference entities that were
// never materialized, such as external modules). Results are not re-ranked
// after expansion.
func (s *KnowledgeStore) HybridSearch(ctx context.Context, query string, k int) ([]common.Entity, error) {
	seeds, err := s.vectors.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return []common.Entity{}, nil
	}

	seen := make(map[string]bool, len(seeds))
	related := make([]string, 0, len(seeds))
	addID := func(id string) {
		if !seen[id] {
			seen[id] = true
			related = append(related, id)
		}
	}

	for _, seed := range seeds {
		addID(seed.ID)
	}
	for _, seed := range seeds {
		for _, caller := range s.graph.FindCallers(seed.ID) {
			addID(caller)
		}
		for _, callee := range s.graph.FindCallees(seed.ID) {
			addID(callee)
		}
	}

	logger.Debug("[Knowledge][HybridSearch] Expanded seed set", "seeds", len(seeds), "related", len(related))

	results := make([]common.Entity, 0, len(related))
	for _, id := range related {
		entity, err := s.entities.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		results = append(results, *entity)
	}
	return results, nil
}

// ClearAll empties all three stores sequentially. It is not atomic: a
// failure partway through leaves the stores in a mixed state. Intended to
// run once per fresh ingestion, never concurrently with reads or writes.
func (s *KnowledgeStore) ClearAll(ctx context.Context) error {
	logger.Info("[Knowledge][ClearAll] Clearing all stores")

	s.graph.Clear()
	if err := s.entities.Clear(ctx); err != nil {
		return err
	}
	return s.vectors.Clear(ctx)
}

// UpdateSummary sets the summary of an existing entity record, used by the
// annotation pipeline after ingestion.
func (s *KnowledgeStore) UpdateSummary(ctx context.Context, id, summary string) error {
	return s.entities.UpdateSummary(ctx, id, summary)
}

// GetEntity returns the entity record for id, or nil if none exists.
func (s *KnowledgeStore) GetEntity(ctx context.Context, id string) (*common.Entity, error) {
	return s.entities.GetEntity(ctx, id)
}

// FindEntitiesByType returns every entity record of the given type.
func (s *KnowledgeStore) FindEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error) {
	return s.entities.FindEntitiesByType(ctx, entityType)
}

// GetAllEntities returns every entity record.
func (s *KnowledgeStore) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	return s.entities.GetAllEntities(ctx)
}

// FindNodes filters graph nodes by label set and exact property equality.
func (s *KnowledgeStore) FindNodes(labels []string, properties map[string]any) []common.Node {
	return s.graph.FindNodes(labels, properties)
}

// FindCallers returns the IDs of all graph predecessors of id.
func (s *KnowledgeStore) FindCallers(id string) []string {
	return s.graph.FindCallers(id)
}

// FindCallees returns the IDs of all graph successors of id.
func (s *KnowledgeStore) FindCallees(id string) []string {
	return s.graph.FindCallees(id)
}

func stringProp(properties map[string]any, key string) string {
	if value, ok := properties[key].(string); ok {
		return value
	}
	return ""
}
