package common

import "time"

// Relationship types produced during repository ingestion. The set is open;
// stores treat the type as an uninterpreted string.
const (
	RelDefinedIn      = "DEFINED_IN"
	RelImports        = "IMPORTS"
	RelContainsMethod = "CONTAINS_METHOD"
	RelCalls          = "CALLS"
	RelInheritsFrom   = "INHERITS_FROM"
)

// Interaction types recorded in the episodic log.
const (
	InteractionUserRequest   = "user_request"
	InteractionAgentResponse = "agent_response"
	InteractionThought       = "internal_thought"
	InteractionAction        = "internal_action"
)

// Entity is a logical unit of knowledge extracted from a repository: a file,
// function, class, module, or document chunk. One record exists per store.
//
// UniqueID follows the convention "<type>:<source-path>:<name>", e.g.
// "function:src/utils.py:process_data". Summary starts empty and is the only
// field mutated after creation, by the annotation pass.
type Entity struct {
	UniqueID string `json:"unique_id"`
	Type     string `json:"type"`
	Summary  string `json:"summary"`
	Details  string `json:"details"`
	Code     string `json:"code"`
	Source   string `json:"source"`
}

// Node is the graph-side representation of an entity. Its ID equals the
// entity's UniqueID. Properties is an open key-value map holding a superset
// of the entity fields plus ingestion-time metadata (file path, decorators,
// parent class).
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a directed edge between two node IDs. Endpoints need not
// exist as nodes; dangling references (e.g. unresolved imports) are allowed,
// and duplicate edges of the same type are tolerated.
type Relationship struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Interaction is one episodic log entry: something an agent was asked, did,
// or concluded while working. Metadata holds free-form counters and labels.
type Interaction struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	AgentName string         `json:"agent_name"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// VectorDocument is the similarity-index representation of an entity.
// Content is the text that was embedded, Metadata a flattened copy of the
// entity properties. Score is only populated on query results.
type VectorDocument struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Score     float32        `json:"score,omitempty"`
}
