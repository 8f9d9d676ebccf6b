package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/store/memgraph"
)

// mapEntityStore is an in-memory EntityStore for manager tests.
type mapEntityStore struct {
	records map[string]common.Entity
	failAdd bool
}

func newMapEntityStore() *mapEntityStore {
	return &mapEntityStore{records: make(map[string]common.Entity)}
}

func (s *mapEntityStore) AddEntity(ctx context.Context, entity common.Entity) error {
	if s.failAdd {
		return errors.New("disk full")
	}
	s.records[entity.UniqueID] = entity
	return nil
}

func (s *mapEntityStore) GetEntity(ctx context.Context, id string) (*common.Entity, error) {
	entity, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &entity, nil
}

func (s *mapEntityStore) FindEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error) {
	var out []common.Entity
	for _, entity := range s.records {
		if entity.Type == entityType {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (s *mapEntityStore) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	out := make([]common.Entity, 0, len(s.records))
	for _, entity := range s.records {
		out = append(out, entity)
	}
	return out, nil
}

func (s *mapEntityStore) UpdateSummary(ctx context.Context, id, summary string) error {
	entity, ok := s.records[id]
	if !ok {
		return errors.New("not found")
	}
	entity.Summary = summary
	s.records[id] = entity
	return nil
}

func (s *mapEntityStore) Clear(ctx context.Context) error {
	s.records = make(map[string]common.Entity)
	return nil
}

func (s *mapEntityStore) Close() error { return nil }

// substringIndex is a VectorIndex that matches on substring instead of
// embeddings, keeping manager tests deterministic.
type substringIndex struct {
	docs    map[string]common.VectorDocument
	failAdd bool
}

func newSubstringIndex() *substringIndex {
	return &substringIndex{docs: make(map[string]common.VectorDocument)}
}

func (s *substringIndex) AddDocuments(ctx context.Context, docs []common.VectorDocument) error {
	if s.failAdd {
		return errors.New("index unreachable")
	}
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return nil
}

func (s *substringIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]common.VectorDocument, error) {
	var out []common.VectorDocument
	for _, doc := range s.docs {
		if strings.Contains(doc.Content, query) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *substringIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *substringIndex) DeleteByMetadata(ctx context.Context, filter map[string]any) (int, error) {
	return 0, nil
}

func (s *substringIndex) Clear(ctx context.Context) error {
	s.docs = make(map[string]common.VectorDocument)
	return nil
}

func newTestManager() (*KnowledgeStore, *mapEntityStore, *memgraph.Graph, *substringIndex) {
	entities := newMapEntityStore()
	graph := memgraph.NewGraph()
	vectors := newSubstringIndex()
	return NewKnowledgeStore(entities, graph, vectors), entities, graph, vectors
}

func TestAddEntity_WritesAllStores(t *testing.T) {
	manager, entities, graph, vectors := newTestManager()
	ctx := context.Background()

	ok := manager.AddEntity(ctx, "function:a.py:f", "function", "def f(): ...", map[string]any{
		"summary":   "Frobnicates.",
		"code":      "def f():\n    pass",
		"file_path": "a.py",
	}, nil)
	if !ok {
		t.Fatal("expected add to succeed")
	}

	record, err := entities.GetEntity(ctx, "function:a.py:f")
	if err != nil || record == nil {
		t.Fatalf("expected entity record, got %v, %v", record, err)
	}
	if record.Summary != "Frobnicates." || record.Details != "def f(): ..." || record.Source != "a.py" {
		t.Fatalf("entity fields not mapped: %+v", record)
	}

	if graph.GetNode("function:a.py:f") == nil {
		t.Fatal("expected graph node")
	}

	doc, exists := vectors.docs["function:a.py:f"]
	if !exists {
		t.Fatal("expected vector document")
	}
	if doc.Metadata["type"] != "function" || doc.Metadata["file_path"] != "a.py" {
		t.Fatalf("metadata not merged: %v", doc.Metadata)
	}
}

func TestAddEntity_PartialFailureNoRollback(t *testing.T) {
	manager, entities, graph, vectors := newTestManager()
	ctx := context.Background()

	entities.failAdd = true

	ok := manager.AddEntity(ctx, "function:a.py:f", "function", "content", nil, nil)
	if ok {
		t.Fatal("expected add to report failure")
	}

	// The graph and vector writes happened first and stay committed.
	if graph.GetNode("function:a.py:f") == nil {
		t.Fatal("expected graph node to survive entity store failure")
	}
	if _, exists := vectors.docs["function:a.py:f"]; !exists {
		t.Fatal("expected vector document to survive entity store failure")
	}
}

func TestAddEntity_UpsertAcrossStores(t *testing.T) {
	manager, entities, graph, vectors := newTestManager()
	ctx := context.Background()

	manager.AddEntity(ctx, "file:a.py", "file", "old", nil, nil)
	manager.AddEntity(ctx, "file:a.py", "document", "new", nil, nil)

	all, _ := entities.GetAllEntities(ctx)
	if len(all) != 1 || all[0].Details != "new" {
		t.Fatalf("expected single latest record, got %v", all)
	}
	if node := graph.GetNode("file:a.py"); node == nil || node.Type != "document" {
		t.Fatalf("expected single latest node, got %v", node)
	}
	if len(vectors.docs) != 1 || vectors.docs["file:a.py"].Content != "new" {
		t.Fatalf("expected single latest document, got %v", vectors.docs)
	}
}

func TestHybridSearch_EmptySeeds(t *testing.T) {
	manager, _, _, _ := newTestManager()

	results, err := manager.HybridSearch(context.Background(), "nothing matches", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestHybridSearch_OneHopExpansion(t *testing.T) {
	manager, _, _, _ := newTestManager()
	ctx := context.Background()

	// seed matches the query; caller and callee are one hop away.
	manager.AddEntity(ctx, "function:a.py:seed", "function", "parser entry point", nil, nil)
	manager.AddEntity(ctx, "function:b.py:caller", "function", "unrelated", nil, nil)
	manager.AddEntity(ctx, "function:c.py:callee", "function", "unrelated", nil, nil)
	manager.AddEntity(ctx, "function:d.py:distant", "function", "unrelated", nil, nil)

	manager.AddRelationship("function:b.py:caller", "function:a.py:seed", common.RelCalls, nil)
	manager.AddRelationship("function:a.py:seed", "function:c.py:callee", common.RelCalls, nil)
	// two hops away, must not be returned
	manager.AddRelationship("function:c.py:callee", "function:d.py:distant", common.RelCalls, nil)

	results, err := manager.HybridSearch(ctx, "parser", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	ids := make([]string, 0, len(results))
	for _, entity := range results {
		ids = append(ids, entity.UniqueID)
	}
	sort.Strings(ids)

	want := []string{"function:a.py:seed", "function:b.py:caller", "function:c.py:callee"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestHybridSearch_DropsUnmaterializedIDs(t *testing.T) {
	manager, _, _, _ := newTestManager()
	ctx := context.Background()

	manager.AddEntity(ctx, "function:a.py:seed", "function", "parser entry point", nil, nil)
	// dangling edge to an entity that was never materialized
	manager.AddRelationship("function:a.py:seed", "module:external:os", common.RelImports, nil)

	results, err := manager.HybridSearch(ctx, "parser", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].UniqueID != "function:a.py:seed" {
		t.Fatalf("expected only the seed, got %v", results)
	}
}

func TestClearAll_EmptiesEverything(t *testing.T) {
	manager, entities, graph, vectors := newTestManager()
	ctx := context.Background()

	manager.AddEntity(ctx, "function:a.py:f", "function", "parser", nil, nil)
	manager.AddRelationship("function:a.py:f", "file:a.py", common.RelDefinedIn, nil)

	if err := manager.ClearAll(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if found, _ := entities.FindEntitiesByType(ctx, "function"); len(found) != 0 {
		t.Fatalf("expected no entities, got %d", len(found))
	}
	if nodes := graph.FindNodes(nil, nil); len(nodes) != 0 {
		t.Fatalf("expected no nodes, got %d", len(nodes))
	}
	if results, _ := vectors.SimilaritySearch(ctx, "parser", 5); len(results) != 0 {
		t.Fatalf("expected no documents, got %d", len(results))
	}
}

func TestUpdateSummary_Passthrough(t *testing.T) {
	manager, entities, _, _ := newTestManager()
	ctx := context.Background()

	manager.AddEntity(ctx, "function:a.py:f", "function", "content", nil, nil)
	if err := manager.UpdateSummary(ctx, "function:a.py:f", "Summarized."); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	record, _ := entities.GetEntity(ctx, "function:a.py:f")
	if record.Summary != "Summarized." {
		t.Fatalf("expected summary update, got %q", record.Summary)
	}
}
