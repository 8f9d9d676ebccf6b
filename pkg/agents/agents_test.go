package agents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/store/memgraph"
	"github.com/reporover/backend/pkg/store/memvec"
	"github.com/reporover/backend/pkg/store/sqlite"
)

// fakeAI returns canned completions and keyword-based embeddings so agent
// behavior is deterministic. The first failures completion calls error out.
type fakeAI struct {
	completion string

	mu       sync.Mutex
	failures int
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return "", errors.New("model overloaded")
	}
	return f.completion, nil
}

func (f *fakeAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return nil
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if strings.Contains(string(input), "parser") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func newTestKnowledge(t *testing.T, aiClient ai.Client) *store.KnowledgeStore {
	t.Helper()
	entities, err := sqlite.NewEntityStore(filepath.Join(t.TempDir(), "entities.db"))
	if err != nil {
		t.Fatalf("failed to open entity store: %v", err)
	}
	t.Cleanup(func() { entities.Close() })
	return store.NewKnowledgeStore(entities, memgraph.NewGraph(), memvec.NewIndex(aiClient))
}

func TestRetriever_CollectsEnrichedEntities(t *testing.T) {
	aiClient := &fakeAI{}
	knowledge := newTestKnowledge(t, aiClient)
	ctx := context.Background()

	knowledge.AddEntity(ctx, "function:a.py:parse", "function", "parser entry point", map[string]any{
		"summary": "Parses configs.",
	}, nil)
	knowledge.AddEntity(ctx, "function:b.py:send", "function", "network sender", nil, nil)

	agent := NewRetriever(knowledge)
	result, err := agent.Execute(ctx, map[string]any{"question": "parser", "k": 1})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if result["status"] != StatusSuccess {
		t.Fatalf("expected success, got %v", result["status"])
	}
	collected, ok := result["collected_data"].([]any)
	if !ok || len(collected) != 1 {
		t.Fatalf("expected 1 collected entity, got %v", result["collected_data"])
	}
	entity := collected[0].(map[string]any)
	if entity["id"] != "function:a.py:parse" {
		t.Fatalf("expected parser entity, got %v", entity["id"])
	}
	if output, _ := result["final_output"].(string); !strings.Contains(output, "function:a.py:parse") {
		t.Fatalf("expected summary line, got %q", output)
	}
}

func TestRetriever_NoQuestion(t *testing.T) {
	agent := NewRetriever(newTestKnowledge(t, &fakeAI{}))
	result, err := agent.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["status"] != StatusError {
		t.Fatalf("expected error status, got %v", result["status"])
	}
}

func TestEntityLookup_ByIDAndType(t *testing.T) {
	knowledge := newTestKnowledge(t, &fakeAI{})
	ctx := context.Background()
	knowledge.AddEntity(ctx, "function:a.py:f", "function", "content", nil, nil)
	knowledge.AddEntity(ctx, "class:a.py:C", "class", "content", nil, nil)

	agent := NewEntityLookup(knowledge)

	result, err := agent.Execute(ctx, map[string]any{"entity_id": "function:a.py:f"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	entities := result["entities"].([]any)
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}

	result, err = agent.Execute(ctx, map[string]any{"entity_type": "class"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	entities = result["entities"].([]any)
	if len(entities) != 1 || entities[0].(map[string]any)["id"] != "class:a.py:C" {
		t.Fatalf("expected the class entity, got %v", entities)
	}

	result, err = agent.Execute(ctx, map[string]any{"entity_id": "missing"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["status"] != StatusError {
		t.Fatalf("expected error status for missing entity, got %v", result["status"])
	}
}

func TestGraphQuery_Traversal(t *testing.T) {
	knowledge := newTestKnowledge(t, &fakeAI{})
	ctx := context.Background()
	knowledge.AddEntity(ctx, "A", "function", "content", nil, nil)
	knowledge.AddEntity(ctx, "B", "function", "content", nil, nil)
	knowledge.AddRelationship("A", "B", "CALLS", nil)

	agent := NewGraphQuery(knowledge)

	result, err := agent.Execute(ctx, map[string]any{"entity_id": "B", "direction": "callers"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	ids := result["entity_ids"].([]any)
	if len(ids) != 1 || ids[0] != "A" {
		t.Fatalf("expected callers [A], got %v", ids)
	}

	result, err = agent.Execute(ctx, map[string]any{"entity_id": "B", "direction": "sideways"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["status"] != StatusError {
		t.Fatalf("expected error for unknown direction, got %v", result["status"])
	}
}

func TestGraphQuery_FindNodes(t *testing.T) {
	knowledge := newTestKnowledge(t, &fakeAI{})
	ctx := context.Background()
	knowledge.AddEntity(ctx, "A", "function", "content", map[string]any{"file_path": "a.py"}, nil)
	knowledge.AddEntity(ctx, "B", "class", "content", map[string]any{"file_path": "a.py"}, nil)

	agent := NewGraphQuery(knowledge)
	result, err := agent.Execute(ctx, map[string]any{
		"labels":     []any{"function"},
		"properties": map[string]any{"file_path": "a.py"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	nodes := result["nodes"].([]any)
	if len(nodes) != 1 || nodes[0].(map[string]any)["id"] != "A" {
		t.Fatalf("expected node A, got %v", nodes)
	}
}

func TestAnnotator_FillsMissingSummaries(t *testing.T) {
	aiClient := &fakeAI{completion: "Generated summary."}
	knowledge := newTestKnowledge(t, aiClient)
	ctx := context.Background()

	knowledge.AddEntity(ctx, "function:a.py:f", "function", "content", map[string]any{
		"code": "def f(): pass",
	}, nil)
	knowledge.AddEntity(ctx, "function:a.py:g", "function", "content", map[string]any{
		"code":    "def g(): pass",
		"summary": "Already summarized.",
	}, nil)

	agent := NewAnnotator(knowledge, aiClient, nil, 2)
	result, err := agent.Execute(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["annotated"] != 1 {
		t.Fatalf("expected 1 annotation, got %v", result["annotated"])
	}

	entity, err := knowledge.GetEntity(ctx, "function:a.py:f")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entity.Summary != "Generated summary." {
		t.Fatalf("expected generated summary, got %q", entity.Summary)
	}

	untouched, _ := knowledge.GetEntity(ctx, "function:a.py:g")
	if untouched.Summary != "Already summarized." {
		t.Fatalf("expected existing summary preserved, got %q", untouched.Summary)
	}
}

func TestAnnotator_RetriesTransientFailures(t *testing.T) {
	aiClient := &fakeAI{completion: "Generated summary.", failures: 2}
	knowledge := newTestKnowledge(t, aiClient)
	ctx := context.Background()

	knowledge.AddEntity(ctx, "function:a.py:f", "function", "content", map[string]any{
		"code": "def f(): pass",
	}, nil)

	agent := NewAnnotator(knowledge, aiClient, nil, 1)
	result, err := agent.Execute(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["annotated"] != 1 || result["failed"] != 0 {
		t.Fatalf("expected retried annotation to succeed, got %v", result)
	}

	entity, err := knowledge.GetEntity(ctx, "function:a.py:f")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entity.Summary != "Generated summary." {
		t.Fatalf("expected summary after retries, got %q", entity.Summary)
	}
}

func TestAnnotator_RecordsInteractions(t *testing.T) {
	aiClient := &fakeAI{completion: "Generated summary."}
	knowledge := newTestKnowledge(t, aiClient)
	ctx := context.Background()

	episodic, err := sqlite.NewInteractionLog(filepath.Join(t.TempDir(), "episodic.db"))
	if err != nil {
		t.Fatalf("failed to open interaction log: %v", err)
	}
	t.Cleanup(func() { episodic.Close() })

	knowledge.AddEntity(ctx, "function:a.py:f", "function", "content", map[string]any{
		"code": "def f(): pass",
	}, nil)

	agent := NewAnnotator(knowledge, aiClient, episodic, 1)
	if _, err := agent.Execute(ctx, map[string]any{}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	interactions, err := episodic.RecentInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(interactions) != 2 {
		t.Fatalf("expected start and finish entries, got %d", len(interactions))
	}
	if interactions[0].Type != common.InteractionAction || interactions[1].Type != common.InteractionThought {
		t.Fatalf("expected action then thought newest-first, got %q, %q", interactions[0].Type, interactions[1].Type)
	}
	if interactions[0].Metadata["annotated"] != float64(1) {
		t.Fatalf("expected annotated count in metadata, got %v", interactions[0].Metadata)
	}
}

func TestSynthesizer_Answer(t *testing.T) {
	agent := NewSynthesizer(&fakeAI{completion: "The parser loads config files."})

	result, err := agent.Execute(context.Background(), map[string]any{
		"question": "What does the parser do?",
		"retrieved": map[string]any{
			"collected_data": []any{"x"},
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["answer"] != "The parser loads config files." {
		t.Fatalf("unexpected answer: %v", result["answer"])
	}
}

func TestIngestor_EntitiesAndRelationships(t *testing.T) {
	knowledge := newTestKnowledge(t, &fakeAI{})
	ctx := context.Background()

	agent := NewIngestor(knowledge)
	result, err := agent.Execute(ctx, map[string]any{
		"entities": []any{
			map[string]any{
				"type":    "function",
				"name":    "parse",
				"content": "def parse(): ...",
				"properties": map[string]any{
					"file_path": "src/a.py",
				},
			},
			map[string]any{
				"id":      "file:src/a.py",
				"type":    "file",
				"content": "src/a.py",
			},
		},
		"relationships": []any{
			map[string]any{
				"source_id": "function:src/a.py:parse",
				"target_id": "file:src/a.py",
				"type":      "DEFINED_IN",
			},
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if result["added"] != 2 || result["relationships"] != 1 {
		t.Fatalf("unexpected counts: %v", result)
	}

	entity, err := knowledge.GetEntity(ctx, "function:src/a.py:parse")
	if err != nil || entity == nil {
		t.Fatalf("expected derived-ID entity, got %v, %v", entity, err)
	}
	callees := knowledge.FindCallees("function:src/a.py:parse")
	if len(callees) != 1 || callees[0] != "file:src/a.py" {
		t.Fatalf("expected DEFINED_IN edge, got %v", callees)
	}
}
