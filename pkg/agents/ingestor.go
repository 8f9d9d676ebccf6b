package agents

import (
	"context"
	"fmt"

	"github.com/reporover/backend/pkg/chunker"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"
)

const defaultChunkTokens = 512

// Ingestor writes pre-scanned repository facts into the knowledge store:
// structural entities and relationships produced by an upstream analyzer,
// and documents that it chunks itself. Repository cloning and file scanning
// happen outside this process.
type Ingestor struct {
	knowledge *store.KnowledgeStore

	encoder   string
	maxTokens int
}

func NewIngestor(knowledge *store.KnowledgeStore) *Ingestor {
	return &Ingestor{
		knowledge: knowledge,
		encoder:   chunker.DefaultEncoder,
		maxTokens: defaultChunkTokens,
	}
}

func (a *Ingestor) Name() string {
	return "ingestor"
}

// Execute expects input with any of:
//
//	"entities":      [{id?, type, name?, content, properties?}]
//	"relationships": [{source_id, target_id, type, properties?}]
//	"documents":     [{path, content}]
//
// Entity IDs default to the "<type>:<source>:<name>" convention when not
// given. Failed entity writes are counted, not fatal.
func (a *Ingestor) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	added := 0
	failed := 0

	if rawEntities, ok := input["entities"].([]any); ok {
		for _, raw := range rawEntities {
			spec, ok := raw.(map[string]any)
			if !ok {
				failed++
				continue
			}
			if a.addEntitySpec(ctx, spec) {
				added++
			} else {
				failed++
			}
		}
	}

	if rawDocs, ok := input["documents"].([]any); ok {
		for _, raw := range rawDocs {
			doc, ok := raw.(map[string]any)
			if !ok {
				failed++
				continue
			}
			docAdded, docFailed, err := a.ingestDocument(ctx, doc)
			if err != nil {
				return nil, err
			}
			added += docAdded
			failed += docFailed
		}
	}

	relationships := 0
	if rawRels, ok := input["relationships"].([]any); ok {
		for _, raw := range rawRels {
			rel, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			sourceID, _ := rel["source_id"].(string)
			targetID, _ := rel["target_id"].(string)
			relType, _ := rel["type"].(string)
			if sourceID == "" || targetID == "" || relType == "" {
				continue
			}
			properties, _ := rel["properties"].(map[string]any)
			a.knowledge.AddRelationship(sourceID, targetID, relType, properties)
			relationships++
		}
	}

	logger.Info("[Agents][Ingestor] Ingestion finished", "added", added, "failed", failed, "relationships", relationships)
	return map[string]any{
		"status":        StatusSuccess,
		"added":         added,
		"failed":        failed,
		"relationships": relationships,
	}, nil
}

func (a *Ingestor) addEntitySpec(ctx context.Context, spec map[string]any) bool {
	entityType, _ := spec["type"].(string)
	content, _ := spec["content"].(string)
	properties, _ := spec["properties"].(map[string]any)
	if properties == nil {
		properties = map[string]any{}
	}

	id, _ := spec["id"].(string)
	if id == "" {
		name, _ := spec["name"].(string)
		source := stringValue(properties["file_path"])
		if entityType == "" || name == "" {
			logger.Warn("[Agents][Ingestor] Entity spec missing id and type/name, skipping")
			return false
		}
		id = fmt.Sprintf("%s:%s:%s", entityType, source, name)
	}

	return a.knowledge.AddEntity(ctx, id, entityType, content, properties, nil)
}

func (a *Ingestor) ingestDocument(ctx context.Context, doc map[string]any) (added, failed int, err error) {
	path, _ := doc["path"].(string)
	content, _ := doc["content"].(string)
	if path == "" || content == "" {
		return 0, 1, nil
	}

	chunks, err := chunker.ChunkText(content, a.encoder, a.maxTokens)
	if err != nil {
		return 0, 0, fmt.Errorf("chunk document %s: %w", path, err)
	}

	fileID := fmt.Sprintf("file:%s", path)
	if a.knowledge.AddEntity(ctx, fileID, "file", path, map[string]any{"file_path": path}, nil) {
		added++
	} else {
		failed++
	}

	for _, chunk := range chunks {
		chunkID := fmt.Sprintf("document:%s:chunk_%d", path, chunk.Index)
		properties := map[string]any{
			"file_path":   path,
			"chunk_index": chunk.Index,
			"chunk_ref":   chunk.ID,
		}
		if a.knowledge.AddEntity(ctx, chunkID, "document_chunk", chunk.Text, properties, nil) {
			added++
		} else {
			failed++
		}
		a.knowledge.AddRelationship(chunkID, fileID, common.RelDefinedIn, nil)
	}
	return added, failed, nil
}

func stringValue(value any) string {
	str, _ := value.(string)
	return str
}
