// Package mcptools provides the MCP tool definitions exposing the knowledge
// graph facade's verbs over the Model Context Protocol.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kgraphdb/kgraph/internal/advanced"
	"github.com/kgraphdb/kgraph/internal/cache"
	"github.com/kgraphdb/kgraph/internal/facade"
	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
	"github.com/kgraphdb/kgraph/internal/query"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"
)

// ToolManager registers the MCP tool surface against a single Facade.
type ToolManager struct {
	kg *facade.Facade
}

// NewToolManager creates a new tool manager bound to kg.
func NewToolManager(kg *facade.Facade) *ToolManager {
	return &ToolManager{kg: kg}
}

// RegisterTools registers all MCP tools with the server.
func (tm *ToolManager) RegisterTools(srv *mcpserver.Server) error {
	reg := func(name string, tool *protocol.Tool, handler func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)) error {
		if tool == nil {
			return fmt.Errorf("tool %s creation returned nil", name)
		}
		srv.RegisterTool(tool, handler)
		return nil
	}

	if err := tm.registerNodeTools(reg); err != nil {
		return err
	}
	if err := tm.registerEdgeTools(reg); err != nil {
		return err
	}
	if err := tm.registerQueryTools(reg); err != nil {
		return err
	}
	if err := tm.registerAdvancedTools(reg); err != nil {
		return err
	}
	if err := tm.registerAdminTools(reg); err != nil {
		return err
	}

	slog.Info("successfully registered all MCP tools")
	return nil
}

type registerFunc func(string, *protocol.Tool, func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)) error

func (tm *ToolManager) registerNodeTools(reg registerFunc) error {
	if err := reg("graph_add_node", tm.addNodeTool(), tm.addNodeHandler); err != nil {
		return err
	}
	if err := reg("graph_get_node", tm.getNodeTool(), tm.getNodeHandler); err != nil {
		return err
	}
	if err := reg("graph_update_node", tm.updateNodeTool(), tm.updateNodeHandler); err != nil {
		return err
	}
	if err := reg("graph_delete_node", tm.deleteNodeTool(), tm.deleteNodeHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) registerEdgeTools(reg registerFunc) error {
	if err := reg("graph_add_edge", tm.addEdgeTool(), tm.addEdgeHandler); err != nil {
		return err
	}
	if err := reg("graph_get_edge", tm.getEdgeTool(), tm.getEdgeHandler); err != nil {
		return err
	}
	if err := reg("graph_update_edge", tm.updateEdgeTool(), tm.updateEdgeHandler); err != nil {
		return err
	}
	if err := reg("graph_delete_edge", tm.deleteEdgeTool(), tm.deleteEdgeHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) registerQueryTools(reg registerFunc) error {
	if err := reg("graph_execute_query", tm.executeQueryTool(), tm.executeQueryHandler); err != nil {
		return err
	}
	if err := reg("graph_explain_query", tm.explainQueryTool(), tm.explainQueryHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) registerAdvancedTools(reg registerFunc) error {
	if err := reg("graph_find_paths", tm.findPathsTool(), tm.findPathsHandler); err != nil {
		return err
	}
	if err := reg("graph_find_patterns", tm.findPatternsTool(), tm.findPatternsHandler); err != nil {
		return err
	}
	if err := reg("graph_semantic_search", tm.semanticSearchTool(), tm.semanticSearchHandler); err != nil {
		return err
	}
	if err := reg("graph_find_similar_nodes", tm.findSimilarNodesTool(), tm.findSimilarNodesHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) registerAdminTools(reg registerFunc) error {
	if err := reg("graph_create_index", tm.createIndexTool(), tm.createIndexHandler); err != nil {
		return err
	}
	if err := reg("graph_invalidate_cache", tm.invalidateCacheTool(), tm.invalidateCacheHandler); err != nil {
		return err
	}
	if err := reg("graph_clear_cache", tm.clearCacheTool(), tm.clearCacheHandler); err != nil {
		return err
	}
	if err := reg("graph_stats", tm.statsTool(), tm.statsHandler); err != nil {
		return err
	}
	return nil
}

const errParseArgs = "failed to parse arguments: %w"

// ---- Input shapes ----

type AddNodeInput struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

type GetNodeInput struct {
	ID string `json:"id"`
}

type UpdateNodeInput struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type DeleteNodeInput struct {
	ID string `json:"id"`
}

type AddEdgeInput struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

type GetEdgeInput struct {
	ID string `json:"id"`
}

type UpdateEdgeInput struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties,omitempty"`
}

type DeleteEdgeInput struct {
	ID string `json:"id"`
}

// ConditionInput is one (property, operator, value) filter entry; Op is one
// of eq/ne/lt/lte/gt/gte/in/nin/contains/startsWith/endsWith/regex/exists.
type ConditionInput struct {
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    any    `json:"value,omitempty"`
}

type SortKeyInput struct {
	Property  string `json:"property"`
	Direction string `json:"direction,omitempty"` // asc (default) or desc
}

// QuerySpecInput is the JSON-friendly mirror of query.Spec; graph.Predicate
// fields are flattened into Filter lists since Predicate is an interface and
// can't be unmarshaled directly. It has no pattern segments and no aggregate
// target, so pattern and aggregate specs built from it fail validation.
type QuerySpecInput struct {
	Kind string `json:"kind"` // node, edge, traversal, pattern, aggregate

	NodeID     string           `json:"node_id,omitempty"`
	NodeFilter []ConditionInput `json:"node_filter,omitempty"`

	EdgeID     string           `json:"edge_id,omitempty"`
	EdgeFilter []ConditionInput `json:"edge_filter,omitempty"`
	SourceID   string           `json:"source_id,omitempty"`
	TargetID   string           `json:"target_id,omitempty"`
	EdgeType   string           `json:"edge_type,omitempty"`

	StartID   string   `json:"start_id,omitempty"`
	EndID     string   `json:"end_id,omitempty"`
	Direction string   `json:"direction,omitempty"`
	EdgeTypes []string `json:"edge_types,omitempty"`
	MaxDepth  int      `json:"max_depth,omitempty"`

	Aggregation    string `json:"aggregation,omitempty"`
	AggregateField string `json:"aggregate_field,omitempty"`

	Filter     []ConditionInput `json:"filter,omitempty"`
	Sort       []SortKeyInput   `json:"sort,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
	Projection []string         `json:"projection,omitempty"`
}

type ExecuteQueryInput struct {
	Spec       QuerySpecInput `json:"spec"`
	CacheScope string         `json:"cache_scope,omitempty"`
}

type ExplainQueryInput struct {
	Spec QuerySpecInput `json:"spec"`
}

type FindPathsInput struct {
	StartID       string   `json:"start_id"`
	EndID         string   `json:"end_id"`
	MaxLength     int      `json:"max_length,omitempty"`
	EdgeTypes     []string `json:"edge_types,omitempty"`
	Bidirectional bool     `json:"bidirectional,omitempty"`
}

type PropertyConstraintInput struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

type NodeConstraintInput struct {
	Type       string                    `json:"type,omitempty"`
	Properties []PropertyConstraintInput `json:"properties,omitempty"`
}

type EdgeConstraintInput struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	Type      string `json:"type,omitempty"`
	Direction string `json:"direction,omitempty"`
}

type FindPatternsInput struct {
	Nodes     []NodeConstraintInput `json:"nodes"`
	Edges     []EdgeConstraintInput `json:"edges"`
	Recursive bool                  `json:"recursive,omitempty"`
	Limit     int                   `json:"limit,omitempty"`
}

type SemanticSearchInput struct {
	Text          string    `json:"text,omitempty"`
	NodeID        string    `json:"node_id,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
	EmbeddingKind string    `json:"embedding_kind,omitempty"`
	Threshold     float64   `json:"threshold,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}

type FindSimilarNodesInput struct {
	NodeID    string  `json:"node_id"`
	Threshold float64 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

type CreateIndexInput struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"` // property, full_text, vector, temporal
	Paths         []string `json:"paths,omitempty"`
	EmbeddingKind string   `json:"embedding_kind,omitempty"`
}

type InvalidateCacheInput struct {
	EntityID string `json:"entity_id,omitempty"`
	ExactKey string `json:"exact_key,omitempty"`
}

// ---- Conversion helpers ----

func ToPredicate(conds []ConditionInput) graph.Predicate {
	if len(conds) == 0 {
		return nil
	}
	cmps := make(graph.And, 0, len(conds))
	for _, c := range conds {
		cmps = append(cmps, graph.Cmp{Path: c.Property, Op: graph.Op(c.Op), Value: c.Value})
	}
	if len(cmps) == 1 {
		return cmps[0]
	}
	return cmps
}

func ToEdgeTypes(in []string) []graph.EdgeType {
	if in == nil {
		return nil
	}
	out := make([]graph.EdgeType, len(in))
	for i, t := range in {
		out[i] = graph.EdgeType(t)
	}
	return out
}

func ToSpec(in QuerySpecInput) query.Spec {
	spec := query.Spec{
		Kind:           query.Kind(in.Kind),
		NodeID:         in.NodeID,
		NodeCriteria:   ToPredicate(in.NodeFilter),
		EdgeID:         in.EdgeID,
		EdgeCriteria:   ToPredicate(in.EdgeFilter),
		SourceID:       in.SourceID,
		TargetID:       in.TargetID,
		EdgeType:       graph.EdgeType(in.EdgeType),
		StartID:        in.StartID,
		EndID:          in.EndID,
		Direction:      graph.Direction(in.Direction),
		EdgeTypes:      ToEdgeTypes(in.EdgeTypes),
		MaxDepth:       in.MaxDepth,
		Aggregation:    query.Aggregation(in.Aggregation),
		AggregateField: in.AggregateField,
		Projection:     in.Projection,
	}
	for _, c := range in.Filter {
		spec.Filter = append(spec.Filter, query.Condition{Property: c.Property, Op: graph.Op(c.Op), Value: c.Value})
	}
	for _, s := range in.Sort {
		dir := query.Asc
		if s.Direction == "desc" {
			dir = query.Desc
		}
		spec.Sort = append(spec.Sort, query.SortKey{Property: s.Property, Direction: dir})
	}
	if in.Limit > 0 {
		spec.Limit = &in.Limit
	}
	if in.Offset > 0 {
		spec.Offset = &in.Offset
	}
	return spec
}

// maxIDSuggestions bounds how many did-you-mean candidates a failed id
// lookup surfaces.
const maxIDSuggestions = 3

// suggestNodeIDs returns near-miss node ids for a failed lookup of id,
// ordered by edit distance. Best-effort: a scan failure yields no
// suggestions rather than masking the original not-found error.
func (tm *ToolManager) suggestNodeIDs(ctx context.Context, id string) []string {
	ids, err := tm.kg.ListNodeIDs(ctx)
	if err != nil {
		return nil
	}
	return SuggestIDs(id, ids, maxIDSuggestions)
}

func (tm *ToolManager) suggestEdgeIDs(ctx context.Context, id string) []string {
	ids, err := tm.kg.ListEdgeIDs(ctx)
	if err != nil {
		return nil
	}
	return SuggestIDs(id, ids, maxIDSuggestions)
}

func ToPattern(in FindPatternsInput) advanced.Pattern {
	p := advanced.Pattern{Recursive: in.Recursive, Limit: in.Limit}
	for _, n := range in.Nodes {
		nc := advanced.NodeConstraint{Type: graph.NodeType(n.Type)}
		for _, pc := range n.Properties {
			nc.Properties = append(nc.Properties, advanced.PropertyConstraint{Path: pc.Path, Op: graph.Op(pc.Op), Value: pc.Value})
		}
		p.Nodes = append(p.Nodes, nc)
	}
	for _, e := range in.Edges {
		dir := graph.DirectionOutgoing
		if e.Direction != "" {
			dir = graph.Direction(e.Direction)
		}
		p.Edges = append(p.Edges, advanced.EdgeConstraint{From: e.From, To: e.To, Type: graph.EdgeType(e.Type), Direction: dir})
	}
	return p
}

func textResult(text string) *protocol.CallToolResult {
	return protocol.NewCallToolResult([]protocol.Content{
		&protocol.TextContent{Type: "text", Text: text},
	}, false)
}

func errorResult(text string) *protocol.CallToolResult {
	return protocol.NewCallToolResult([]protocol.Content{
		&protocol.TextContent{Type: "text", Text: text},
	}, true)
}

// ---- Tool definitions ----

func (tm *ToolManager) addNodeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_add_node", `Create a node in the knowledge graph.

Explanation: Stores a new node of the given type with arbitrary properties and an optional embedding, and returns the stored node including its generated id.

When to call: Use whenever new knowledge needs to enter the graph as an addressable entity (a Concept, Entity, Event, Rule, ...).

Example arguments/values:
	type: "Entity"
	properties: { name: "Ada Lovelace" }
`, AddNodeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_add_node", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) getNodeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_get_node", `Retrieve a node by id.

Explanation: Returns the full node record (type, properties, metadata) for the given id.

When to call: Use when you already have a node id and need its current data.

Example arguments/values:
	id: "3f7e..."
`, GetNodeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_get_node", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) updateNodeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_update_node", `Patch a node's properties and/or metadata.

Explanation: Merges the given properties/metadata into the existing node; unspecified fields are left untouched.

When to call: Use to correct or enrich an existing node without recreating it.

Example arguments/values:
	id: "3f7e..."
	properties: { verified: true }
`, UpdateNodeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_update_node", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) deleteNodeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_delete_node", `Delete a node by id.

Explanation: Removes the node. Incident edges are rejected unless the server was started with cascade deletes enabled.

When to call: Use to permanently remove an entity from the graph.

Example arguments/values:
	id: "3f7e..."
`, DeleteNodeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_delete_node", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) addEdgeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_add_edge", `Create an edge between two existing nodes.

Explanation: Connects source_id to target_id with the given relation type and optional properties.

When to call: Use to record a relationship (IsA, Causes, RelatedTo, ...) between two nodes that already exist.

Example arguments/values:
	source_id: "3f7e..."
	target_id: "9ab1..."
	type: "RelatedTo"
`, AddEdgeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_add_edge", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) getEdgeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_get_edge", `Retrieve an edge by id.

Explanation: Returns the full edge record (source, target, type, properties, metadata).

When to call: Use when you already have an edge id and need its current data.

Example arguments/values:
	id: "e1a2..."
`, GetEdgeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_get_edge", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) updateEdgeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_update_edge", `Patch an edge's properties.

Explanation: Merges the given properties into the existing edge.

When to call: Use to adjust relationship metadata (e.g. a confidence score) without recreating the edge.

Example arguments/values:
	id: "e1a2..."
	properties: { weight: 0.9 }
`, UpdateEdgeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_update_edge", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) deleteEdgeTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_delete_edge", `Delete an edge by id.

Explanation: Removes the relationship; both endpoint nodes are left intact.

When to call: Use to retract a previously recorded relationship.

Example arguments/values:
	id: "e1a2..."
`, DeleteEdgeInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_delete_edge", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) executeQueryTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_execute_query", `Plan and execute a structured query against the graph.

Explanation: Accepts a tagged query spec (kind: node/edge/traversal) plus optional filter/sort/limit/offset/projection modifiers, runs it through the cost-based planner, and returns the matching rows. Pattern and aggregate specs are rejected here, since this input carries no pattern segments or aggregate target. Results that hit the semantic cache skip re-execution entirely.

When to call: Use for anything beyond a single-entity lookup: filtered scans or multi-hop traversals. Use graph_find_patterns for structural patterns.

Example arguments/values:
	spec: { kind: "traversal", start_id: "3f7e...", direction: "outgoing", max_depth: 3 }
`, ExecuteQueryInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_execute_query", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) explainQueryTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_explain_query", `Explain how a query would be planned, without executing it.

Explanation: Returns every candidate plan the planner enumerated with its rewritten steps, each plan's estimated cost, and which one would be selected.

When to call: Use to debug why a query is slow or to verify an index is actually being used, before spending the cost of real execution.

Example arguments/values:
	spec: { kind: "node", node_filter: [{ property: "properties.name", op: "eq", value: "Ada Lovelace" }] }
`, ExplainQueryInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_explain_query", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) findPathsTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_find_paths", `Find paths between two nodes.

Explanation: Returns every simple path from start_id to end_id up to max_length edges. Set bidirectional to search from both ends at once on long paths.

When to call: Use to discover how two entities relate, or to check whether a relationship chain exists at all.

Example arguments/values:
	start_id: "3f7e..."
	end_id: "9ab1..."
	max_length: 4
	bidirectional: true
`, FindPathsInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_find_paths", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) findPatternsTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_find_patterns", `Find subgraphs matching a node/edge pattern.

Explanation: Nodes are indices into the "nodes" list; edges reference those indices by position ("from"/"to"). Returns one match per distinct binding of node ids to pattern positions.

When to call: Use for structural questions a single traversal can't express, e.g. "find every A-causes-B-causes-C chain where A and C share a type".

Example arguments/values:
	nodes: [{ type: "Event" }, { type: "Event" }]
	edges: [{ from: 0, to: 1, type: "Precedes" }]
`, FindPatternsInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_find_patterns", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) semanticSearchTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_semantic_search", `Search nodes by meaning rather than exact match.

Explanation: Embeds text (or uses a supplied embedding / an existing node's own embedding) and returns the closest nodes by cosine similarity, falling back to full-text or substring matching when no embedding is available.

When to call: Use when the caller doesn't know the exact property value to filter on, only roughly what they're looking for.

Example arguments/values:
	text: "machine learning pioneer"
	limit: 5
`, SemanticSearchInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_semantic_search", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) findSimilarNodesTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_find_similar_nodes", `Find nodes similar to an existing node.

Explanation: Semantic search seeded from node_id's own embedding, excluding node_id itself from the results.

When to call: Use for "more like this" style lookups once you already have one relevant node.

Example arguments/values:
	node_id: "3f7e..."
	limit: 10
`, FindSimilarNodesInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_find_similar_nodes", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) createIndexTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_create_index", `Declare a new index.

Explanation: kind is one of property, full_text, vector, or temporal. paths names the property paths a property/full_text/temporal index covers. embedding_kind is stored with a vector index but does not select its vectors: every vector index holds each node's primary embedding.

When to call: Use to speed up a query shape you expect to run often, or to enable full-text/vector search over a new property.

Example arguments/values:
	name: "by_name"
	kind: "property"
	paths: ["properties.name"]
`, CreateIndexInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_create_index", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) invalidateCacheTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_invalidate_cache", `Invalidate cached query results.

Explanation: Removes cache entries referencing entity_id, or the single entry under exact_key, whichever is given.

When to call: Use after an out-of-band mutation the facade didn't itself perform, to force fresh results on the next query.

Example arguments/values:
	entity_id: "3f7e..."
`, InvalidateCacheInput{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_invalidate_cache", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) clearCacheTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_clear_cache", `Empty the result cache entirely.

Explanation: Drops every cached query result immediately.

When to call: Use sparingly, e.g. after a bulk load that touched most of the graph.
`, struct{}{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_clear_cache", "err", err)
		return nil
	}
	return tool
}

func (tm *ToolManager) statsTool() *protocol.Tool {
	tool, err := protocol.NewTool("graph_stats", `Report graph size and cache performance counters.

Explanation: Returns node/edge counts plus cache size, hit/miss counters, and hit rate.

When to call: Use for health checks or to decide whether the cache is pulling its weight.
`, struct{}{})
	if err != nil {
		slog.Error("failed to create tool", "name", "graph_stats", "err", err)
		return nil
	}
	return tool
}

// ---- Handlers ----

func (tm *ToolManager) addNodeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in AddNodeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	node, err := tm.kg.AddNode(ctx, graph.NodeType(in.Type), in.Properties, in.Embedding)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(MarshalTOON(node)), nil
}

func (tm *ToolManager) getNodeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in GetNodeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	node, err := tm.kg.GetNode(ctx, in.ID)
	if err != nil {
		if kgerrors.KindOf(err) == kgerrors.NotFound {
			return textResult(EmptyResult(fmt.Sprintf("no node found for id '%s'", in.ID), tm.suggestNodeIDs(ctx, in.ID))), nil
		}
		return errorResult(err.Error()), nil
	}
	return textResult(MarshalTOON(node)), nil
}

func (tm *ToolManager) updateNodeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in UpdateNodeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	ok, err := tm.kg.UpdateNode(ctx, in.ID, graph.Patch{Properties: in.Properties, Metadata: in.Metadata})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !ok {
		return textResult(EmptyResult(fmt.Sprintf("no node found for id '%s'", in.ID), tm.suggestNodeIDs(ctx, in.ID))), nil
	}
	return textResult(fmt.Sprintf("updated node '%s'", in.ID)), nil
}

func (tm *ToolManager) deleteNodeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in DeleteNodeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	ok, err := tm.kg.DeleteNode(ctx, in.ID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !ok {
		return textResult(EmptyResult(fmt.Sprintf("no node found for id '%s'", in.ID), tm.suggestNodeIDs(ctx, in.ID))), nil
	}
	return textResult(fmt.Sprintf("deleted node '%s'", in.ID)), nil
}

func (tm *ToolManager) addEdgeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in AddEdgeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	edge, err := tm.kg.AddEdge(ctx, in.SourceID, in.TargetID, graph.EdgeType(in.Type), in.Properties)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(MarshalTOON(edge)), nil
}

func (tm *ToolManager) getEdgeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in GetEdgeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	edge, err := tm.kg.GetEdge(ctx, in.ID)
	if err != nil {
		if kgerrors.KindOf(err) == kgerrors.NotFound {
			return textResult(EmptyResult(fmt.Sprintf("no edge found for id '%s'", in.ID), tm.suggestEdgeIDs(ctx, in.ID))), nil
		}
		return errorResult(err.Error()), nil
	}
	return textResult(MarshalTOON(edge)), nil
}

func (tm *ToolManager) updateEdgeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in UpdateEdgeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	ok, err := tm.kg.UpdateEdge(ctx, in.ID, graph.Patch{Properties: in.Properties})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !ok {
		return textResult(EmptyResult(fmt.Sprintf("no edge found for id '%s'", in.ID), tm.suggestEdgeIDs(ctx, in.ID))), nil
	}
	return textResult(fmt.Sprintf("updated edge '%s'", in.ID)), nil
}

func (tm *ToolManager) deleteEdgeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in DeleteEdgeInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	ok, err := tm.kg.DeleteEdge(ctx, in.ID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !ok {
		return textResult(EmptyResult(fmt.Sprintf("no edge found for id '%s'", in.ID), tm.suggestEdgeIDs(ctx, in.ID))), nil
	}
	return textResult(fmt.Sprintf("deleted edge '%s'", in.ID)), nil
}

func (tm *ToolManager) executeQueryHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ExecuteQueryInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	rows, err := tm.kg.ExecuteQuery(ctx, ToSpec(in.Spec), in.CacheScope)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if len(rows) == 0 {
		return textResult(EmptyResult("query returned no rows", nil)), nil
	}
	return textResult(MarshalTOON(rows)), nil
}

func (tm *ToolManager) explainQueryHandler(_ context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ExplainQueryInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	explanation, err := tm.kg.ExplainQuery(ToSpec(in.Spec))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(MarshalYAML(explanation)), nil
}

func (tm *ToolManager) findPathsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in FindPathsInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	opts := advanced.PathOptions{
		MaxLength:     in.MaxLength,
		EdgeTypes:     ToEdgeTypes(in.EdgeTypes),
		Bidirectional: in.Bidirectional,
	}
	paths, err := tm.kg.FindPaths(ctx, in.StartID, in.EndID, opts)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if len(paths) == 0 {
		return textResult(EmptyResult(fmt.Sprintf("no path found between '%s' and '%s'", in.StartID, in.EndID), nil)), nil
	}
	return textResult(MarshalTOON(paths)), nil
}

func (tm *ToolManager) findPatternsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in FindPatternsInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	matches, err := tm.kg.FindPatterns(ctx, ToPattern(in), in.Limit)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if len(matches) == 0 {
		return textResult(EmptyResult("no matches found for pattern", nil)), nil
	}
	return textResult(MarshalTOON(matches)), nil
}

func (tm *ToolManager) semanticSearchHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in SemanticSearchInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	q := advanced.SemanticQuery{Text: in.Text, Embedding: in.Embedding, NodeID: in.NodeID}
	opts := advanced.SemanticOptions{EmbeddingKind: in.EmbeddingKind, Threshold: in.Threshold, Limit: in.Limit}
	matches, err := tm.kg.SemanticSearch(ctx, q, opts)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if len(matches) == 0 {
		return textResult(EmptyResult("no similar nodes found", nil)), nil
	}
	return textResult(MarshalTOON(matches)), nil
}

func (tm *ToolManager) findSimilarNodesHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in FindSimilarNodesInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	opts := advanced.SemanticOptions{Threshold: in.Threshold, Limit: in.Limit}
	matches, err := tm.kg.FindSimilarNodes(ctx, in.NodeID, opts)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if len(matches) == 0 {
		return textResult(EmptyResult(fmt.Sprintf("no nodes similar to '%s' found", in.NodeID), nil)), nil
	}
	return textResult(MarshalTOON(matches)), nil
}

func (tm *ToolManager) createIndexHandler(_ context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in CreateIndexInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	spec := index.Spec{Paths: in.Paths, EmbeddingKind: in.EmbeddingKind}
	if err := tm.kg.CreateIndex(in.Name, index.Kind(in.Kind), spec); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("created index '%s' (%s)", in.Name, in.Kind)), nil
}

func (tm *ToolManager) invalidateCacheHandler(_ context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in InvalidateCacheInput
	if err := json.Unmarshal(request.RawArguments, &in); err != nil {
		return nil, fmt.Errorf(errParseArgs, err)
	}
	n := tm.kg.Invalidate(cache.InvalidateCriteria{EntityID: in.EntityID, ExactKey: in.ExactKey})
	return textResult(fmt.Sprintf("invalidated %d cache entries", n)), nil
}

func (tm *ToolManager) clearCacheHandler(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	tm.kg.Clear()
	return textResult("cache cleared"), nil
}

func (tm *ToolManager) statsHandler(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	stats, err := tm.kg.Stats(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if counts, ok := stats["node_type_counts"].(map[string]int); ok {
		stats["top_node_types"] = TopCounts(counts, 5)
	}
	if counts, ok := stats["edge_type_counts"].(map[string]int); ok {
		stats["top_edge_types"] = TopCounts(counts, 5)
	}
	return textResult(MarshalYAML(stats)), nil
}
