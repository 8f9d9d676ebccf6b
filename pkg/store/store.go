package store

import (
	"context"

	"github.com/reporover/backend/pkg/common"
)

// EntityStore is a keyed record store for denormalized entity fields. Upserts
// are keyed by the entity's UniqueID. Absent entities are reported as nil
// records, never as errors. Single-writer discipline is required; the store
// provides no locking beyond single-statement upsert guarantees of the
// underlying engine.
type EntityStore interface {
	AddEntity(ctx context.Context, entity common.Entity) error
	GetEntity(ctx context.Context, uniqueID string) (*common.Entity, error)
	FindEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error)
	GetAllEntities(ctx context.Context) ([]common.Entity, error)
	UpdateSummary(ctx context.Context, uniqueID string, summary string) error
	Clear(ctx context.Context) error
	Close() error
}

// GraphStore is a directed graph of entity nodes and typed relationships.
// Implementations hold the graph fully in memory, so operations take no
// context and do not suspend. CreateRelationship performs no endpoint
// validation and no deduplication. FindCallers/FindCallees on an absent ID
// return an empty list.
type GraphStore interface {
	CreateNode(node common.Node)
	GetNode(id string) *common.Node
	CreateRelationship(rel common.Relationship)
	FindNodes(labels []string, properties map[string]any) []common.Node
	FindCallers(id string) []string
	FindCallees(id string) []string
	Clear()
}

// InteractionStore is the episodic memory log: an append-only record of what
// agents were asked and what they did. Reads return newest entries first.
type InteractionStore interface {
	AddInteraction(ctx context.Context, interaction common.Interaction) error
	RecentInteractions(ctx context.Context, limit int) ([]common.Interaction, error)
	InteractionsByAgent(ctx context.Context, agentName string, limit int) ([]common.Interaction, error)
	Clear(ctx context.Context) error
	Close() error
}

// VectorIndex is a similarity index over entity text. AddDocuments upserts by
// document ID. SimilaritySearch returns up to k nearest documents with a
// populated Score. Clear drops and recreates the underlying collection.
type VectorIndex interface {
	AddDocuments(ctx context.Context, docs []common.VectorDocument) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]common.VectorDocument, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByMetadata(ctx context.Context, filter map[string]any) (int, error)
	Clear(ctx context.Context) error
}
