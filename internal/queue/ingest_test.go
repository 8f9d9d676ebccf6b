package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reporover/backend/pkg/agents"
	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/store/memgraph"
	"github.com/reporover/backend/pkg/store/memvec"
	"github.com/reporover/backend/pkg/store/sqlite"
	"github.com/reporover/backend/pkg/workflow"
)

type keywordEmbedder struct{}

func (keywordEmbedder) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (keywordEmbedder) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return nil
}

func (keywordEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if strings.Contains(string(input), "parser") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

const ingestionWorkflow = `name: ingestion
steps:
  - name: ingest
    agent: ingestor
    input:
      entities: "{{payload.entities}}"
      relationships: "{{payload.relationships}}"
      documents: "{{payload.documents}}"
    output: ingest_result
`

func newTestEngine(t *testing.T) (*workflow.Engine, *store.KnowledgeStore) {
	t.Helper()

	entities, err := sqlite.NewEntityStore(filepath.Join(t.TempDir(), "entities.db"))
	if err != nil {
		t.Fatalf("failed to open entity store: %v", err)
	}
	t.Cleanup(func() { entities.Close() })
	knowledge := store.NewKnowledgeStore(entities, memgraph.NewGraph(), memvec.NewIndex(keywordEmbedder{}))

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ingestion.yaml"), []byte(ingestionWorkflow), 0o644); err != nil {
		t.Fatalf("failed to write workflow: %v", err)
	}
	workflows, err := workflow.LoadRegistry(dir)
	if err != nil {
		t.Fatalf("failed to load workflows: %v", err)
	}

	registry := agents.NewRegistry()
	registry.Register(agents.NewIngestor(knowledge))
	return workflow.NewEngine(workflows, registry), knowledge
}

func TestProcessIngestMessage_QueriesSeeIngestedGraph(t *testing.T) {
	engine, knowledge := newTestEngine(t)
	ctx := context.Background()

	msg, err := json.Marshal(IngestMsg{
		Repository: "demo/repo",
		Entities: []map[string]any{
			{"id": "function:a.py:parse", "type": "function", "content": "parser entry point"},
			{"id": "function:b.py:send", "type": "function", "content": "network sender"},
		},
		Relationships: []map[string]any{
			{"source_id": "function:b.py:send", "target_id": "function:a.py:parse", "type": common.RelCalls},
		},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if err := ProcessIngestMessage(ctx, engine, knowledge, string(msg)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// The store the workflow wrote is the store queries read from, so the
	// vector seed and its one-hop caller must both come back.
	results, err := knowledge.HybridSearch(ctx, "parser", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected seed plus caller, got %d results", len(results))
	}
	ids := map[string]bool{}
	for _, entity := range results {
		ids[entity.UniqueID] = true
	}
	if !ids["function:a.py:parse"] || !ids["function:b.py:send"] {
		t.Fatalf("expected parse and send, got %v", ids)
	}
}

func TestProcessIngestMessage_ClearRequested(t *testing.T) {
	engine, knowledge := newTestEngine(t)
	ctx := context.Background()

	knowledge.AddEntity(ctx, "function:old.py:stale", "function", "stale", nil, nil)

	msg, err := json.Marshal(IngestMsg{
		Repository: "demo/repo",
		Clear:      true,
		Entities: []map[string]any{
			{"id": "function:a.py:parse", "type": "function", "content": "parser entry point"},
		},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if err := ProcessIngestMessage(ctx, engine, knowledge, string(msg)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	stale, err := knowledge.GetEntity(ctx, "function:old.py:stale")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stale != nil {
		t.Fatalf("expected stale entity cleared, got %+v", stale)
	}
	fresh, _ := knowledge.GetEntity(ctx, "function:a.py:parse")
	if fresh == nil {
		t.Fatal("expected fresh entity after clear")
	}
}

func TestProcessIngestMessage_BadPayload(t *testing.T) {
	engine, knowledge := newTestEngine(t)

	if err := ProcessIngestMessage(context.Background(), engine, knowledge, "not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
