package queue

import (
	"context"
	"encoding/json"

	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/workflow"
)

// IngestMsg is the payload published to the ingest queue. Entities,
// relationships and documents are pre-scanned repository facts; Clear
// requests a fresh ingestion that empties all stores first.
type IngestMsg struct {
	Repository    string           `json:"repository"`
	Clear         bool             `json:"clear"`
	Entities      []map[string]any `json:"entities,omitempty"`
	Relationships []map[string]any `json:"relationships,omitempty"`
	Documents     []map[string]any `json:"documents,omitempty"`
}

// ProcessIngestMessage runs the ingestion workflow for one queued payload.
func ProcessIngestMessage(
	ctx context.Context,
	engine *workflow.Engine,
	knowledge *store.KnowledgeStore,
	msg string,
) error {
	data := new(IngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	logger.Info("[Queue][Ingest] Processing ingestion",
		"repository", data.Repository,
		"entities", len(data.Entities),
		"relationships", len(data.Relationships),
		"documents", len(data.Documents),
	)

	if data.Clear {
		if err := knowledge.ClearAll(ctx); err != nil {
			return err
		}
	}

	initialContext := map[string]any{
		"repository": data.Repository,
		"payload": map[string]any{
			"entities":      toAnySlice(data.Entities),
			"relationships": toAnySlice(data.Relationships),
			"documents":     toAnySlice(data.Documents),
		},
	}

	result, err := engine.Execute(ctx, "ingestion", initialContext)
	if err != nil {
		return err
	}

	logger.Info("[Queue][Ingest] Ingestion workflow finished",
		"repository", data.Repository,
		"result", result["ingest_result"],
	)
	return nil
}

func toAnySlice(in []map[string]any) []any {
	out := make([]any, len(in))
	for i, item := range in {
		out[i] = item
	}
	return out
}
