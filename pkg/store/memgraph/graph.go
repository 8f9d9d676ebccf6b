package memgraph

import (
	"maps"
	"sync"

	"github.com/reporover/backend/pkg/common"
)

type edge struct {
	sourceID   string
	targetID   string
	edgeType   string
	properties map[string]any
}

// Graph is an in-memory directed graph of entity nodes and typed
// relationships. It holds the full graph of a single repository, so lookups
// are plain map reads and scans; nothing suspends.
//
// Relationship endpoints are not validated: an edge may reference IDs that
// were never created as nodes (unresolved imports, external modules), and
// duplicate edges between the same pair are kept as-is.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]common.Node
	out   map[string][]edge
	in    map[string][]edge
}

// NewGraph creates an empty in-memory graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]common.Node),
		out:   make(map[string][]edge),
		in:    make(map[string][]edge),
	}
}

// CreateNode inserts or replaces the node with the given ID.
func (g *Graph) CreateNode(node common.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	props := make(map[string]any, len(node.Properties))
	maps.Copy(props, node.Properties)
	node.Properties = props
	g.nodes[node.ID] = node
}

// GetNode returns a copy of the node with the given ID, or nil if no such
// node was ever created.
func (g *Graph) GetNode(id string) *common.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	if node.Type == "" {
		node.Type = "unknown"
	}
	props := make(map[string]any, len(node.Properties))
	maps.Copy(props, node.Properties)
	node.Properties = props
	return &node
}

// CreateRelationship inserts a directed edge. No endpoint existence check,
// no deduplication.
func (g *Graph) CreateRelationship(rel common.Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	props := make(map[string]any, len(rel.Properties))
	maps.Copy(props, rel.Properties)
	e := edge{
		sourceID:   rel.SourceID,
		targetID:   rel.TargetID,
		edgeType:   rel.Type,
		properties: props,
	}
	g.out[rel.SourceID] = append(g.out[rel.SourceID], e)
	g.in[rel.TargetID] = append(g.in[rel.TargetID], e)
}

// FindNodes returns all nodes whose type is in labels (if labels is
// non-empty) and whose properties exactly match every requested property
// (if properties is non-empty). The scan is linear; the graph is expected
// to stay in the low tens of thousands of nodes.
func (g *Graph) FindNodes(labels []string, properties map[string]any) []common.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}

	out := make([]common.Node, 0)
	for _, node := range g.nodes {
		if len(labelSet) > 0 {
			if _, ok := labelSet[node.Type]; !ok {
				continue
			}
		}
		matched := true
		for key, want := range properties {
			if got, ok := node.Properties[key]; !ok || got != want {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		props := make(map[string]any, len(node.Properties))
		maps.Copy(props, node.Properties)
		node.Properties = props
		if node.Type == "" {
			node.Type = "unknown"
		}
		out = append(out, node)
	}
	return out
}

// FindCallers returns the distinct IDs of all nodes with an edge pointing to
// the given ID. An ID the graph has never seen yields an empty list.
func (g *Graph) FindCallers(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range g.in[id] {
		if _, ok := seen[e.sourceID]; ok {
			continue
		}
		seen[e.sourceID] = struct{}{}
		out = append(out, e.sourceID)
	}
	return out
}

// FindCallees returns the distinct IDs of all nodes the given ID has an edge
// pointing to. An ID the graph has never seen yields an empty list.
func (g *Graph) FindCallees(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range g.out[id] {
		if _, ok := seen[e.targetID]; ok {
			continue
		}
		seen[e.targetID] = struct{}{}
		out = append(out, e.targetID)
	}
	return out
}

// Clear drops all nodes and edges.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]common.Node)
	g.out = make(map[string][]edge)
	g.in = make(map[string][]edge)
}
