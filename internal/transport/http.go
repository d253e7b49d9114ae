// Package transport exposes the knowledge-graph facade over a small JSON
// HTTP API, for callers that don't speak MCP. It is a thin, stdlib-only
// sidecar: the facade already enforces every invariant the MCP tool surface
// relies on, so this transport just decodes/encodes JSON around the same
// calls pkg/mcptools makes.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kgraphdb/kgraph/internal/advanced"
	"github.com/kgraphdb/kgraph/internal/cache"
	"github.com/kgraphdb/kgraph/internal/facade"
	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
	"github.com/kgraphdb/kgraph/pkg/mcptools"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	headerCORSOrigin  = "Access-Control-Allow-Origin"
	headerCORSMethods = "Access-Control-Allow-Methods"
	headerCORSHeaders = "Access-Control-Allow-Headers"
	corsMethods       = "GET, POST, PATCH, DELETE, OPTIONS"
	corsOrigin        = "*"
	corsHeaders       = "Content-Type"
)

// HTTPTransport is a plain JSON API server sitting directly on top of a
// *facade.Facade, independent of the MCP transport the same process may
// also be running.
type HTTPTransport struct {
	addr   string
	server *http.Server
	mux    *http.ServeMux
}

// NewHTTPTransport creates an HTTP transport listening on addr. Routes are
// attached lazily by Start, once the facade instance is available.
func NewHTTPTransport(addr string) *HTTPTransport {
	mux := http.NewServeMux()
	return &HTTPTransport{
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		mux: mux,
	}
}

// Start wires every route against kg and blocks serving HTTP until the
// server is shut down or fails.
func (h *HTTPTransport) Start(kg *facade.Facade) error {
	h.setupRoutes(kg)
	slog.Info("starting HTTP transport server", "address", h.addr)
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP transport server")
	return h.server.Shutdown(ctx)
}

func (h *HTTPTransport) setupRoutes(kg *facade.Facade) {
	h.mux.HandleFunc("/health", h.handleHealth)

	h.mux.HandleFunc("POST /v1/nodes", h.withCORS(h.handleAddNode(kg)))
	h.mux.HandleFunc("GET /v1/nodes/{id}", h.withCORS(h.handleGetNode(kg)))
	h.mux.HandleFunc("PATCH /v1/nodes/{id}", h.withCORS(h.handleUpdateNode(kg)))
	h.mux.HandleFunc("DELETE /v1/nodes/{id}", h.withCORS(h.handleDeleteNode(kg)))

	h.mux.HandleFunc("POST /v1/edges", h.withCORS(h.handleAddEdge(kg)))
	h.mux.HandleFunc("GET /v1/edges/{id}", h.withCORS(h.handleGetEdge(kg)))
	h.mux.HandleFunc("PATCH /v1/edges/{id}", h.withCORS(h.handleUpdateEdge(kg)))
	h.mux.HandleFunc("DELETE /v1/edges/{id}", h.withCORS(h.handleDeleteEdge(kg)))

	h.mux.HandleFunc("POST /v1/query", h.withCORS(h.handleExecuteQuery(kg)))
	h.mux.HandleFunc("POST /v1/query/explain", h.withCORS(h.handleExplainQuery(kg)))

	h.mux.HandleFunc("POST /v1/paths", h.withCORS(h.handleFindPaths(kg)))
	h.mux.HandleFunc("POST /v1/patterns", h.withCORS(h.handleFindPatterns(kg)))
	h.mux.HandleFunc("POST /v1/semantic-search", h.withCORS(h.handleSemanticSearch(kg)))
	h.mux.HandleFunc("POST /v1/similar-nodes", h.withCORS(h.handleFindSimilarNodes(kg)))

	h.mux.HandleFunc("POST /v1/indexes", h.withCORS(h.handleCreateIndex(kg)))

	h.mux.HandleFunc("POST /v1/admin/invalidate", h.withCORS(h.handleInvalidate(kg)))
	h.mux.HandleFunc("POST /v1/admin/clear", h.withCORS(h.handleClear(kg)))
	h.mux.HandleFunc("GET /v1/admin/stats", h.withCORS(h.handleStats(kg)))
}

func (h *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPTransport) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerCORSOrigin, corsOrigin)
		w.Header().Set(headerCORSMethods, corsMethods)
		w.Header().Set(headerCORSHeaders, corsHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// --- node handlers ---

type addNodeRequest struct {
	Type       graph.NodeType `json:"type"`
	Properties map[string]any `json:"properties"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

func (h *HTTPTransport) handleAddNode(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addNodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		node, err := kg.AddNode(r.Context(), req.Type, req.Properties, req.Embedding)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, node)
	}
}

func (h *HTTPTransport) handleGetNode(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, err := kg.GetNode(r.Context(), r.PathValue("id"))
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, node)
	}
}

func (h *HTTPTransport) handleUpdateNode(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch graph.Patch
		if !decodeJSON(w, r, &patch) {
			return
		}
		ok, err := kg.UpdateNode(r.Context(), r.PathValue("id"), patch)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"updated": ok})
	}
}

func (h *HTTPTransport) handleDeleteNode(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := kg.DeleteNode(r.Context(), r.PathValue("id"))
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
	}
}

// --- edge handlers ---

type addEdgeRequest struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       graph.EdgeType `json:"type"`
	Properties map[string]any `json:"properties"`
}

func (h *HTTPTransport) handleAddEdge(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addEdgeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		edge, err := kg.AddEdge(r.Context(), req.SourceID, req.TargetID, req.Type, req.Properties)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, edge)
	}
}

func (h *HTTPTransport) handleGetEdge(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edge, err := kg.GetEdge(r.Context(), r.PathValue("id"))
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, edge)
	}
}

func (h *HTTPTransport) handleUpdateEdge(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch graph.Patch
		if !decodeJSON(w, r, &patch) {
			return
		}
		ok, err := kg.UpdateEdge(r.Context(), r.PathValue("id"), patch)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"updated": ok})
	}
}

func (h *HTTPTransport) handleDeleteEdge(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := kg.DeleteEdge(r.Context(), r.PathValue("id"))
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
	}
}

// --- query handlers ---

func (h *HTTPTransport) handleExecuteQuery(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.ExecuteQueryInput
		if !decodeJSON(w, r, &in) {
			return
		}
		rows, err := kg.ExecuteQuery(r.Context(), mcptools.ToSpec(in.Spec), in.CacheScope)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *HTTPTransport) handleExplainQuery(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.ExplainQueryInput
		if !decodeJSON(w, r, &in) {
			return
		}
		result, err := kg.ExplainQuery(mcptools.ToSpec(in.Spec))
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// --- advanced handlers ---

func (h *HTTPTransport) handleFindPaths(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.FindPathsInput
		if !decodeJSON(w, r, &in) {
			return
		}
		paths, err := kg.FindPaths(r.Context(), in.StartID, in.EndID, advanced.PathOptions{
			MaxLength:     in.MaxLength,
			EdgeTypes:     mcptools.ToEdgeTypes(in.EdgeTypes),
			Bidirectional: in.Bidirectional,
		})
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, paths)
	}
}

func (h *HTTPTransport) handleFindPatterns(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.FindPatternsInput
		if !decodeJSON(w, r, &in) {
			return
		}
		matches, err := kg.FindPatterns(r.Context(), mcptools.ToPattern(in), in.Limit)
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func (h *HTTPTransport) handleSemanticSearch(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.SemanticSearchInput
		if !decodeJSON(w, r, &in) {
			return
		}
		matches, err := kg.SemanticSearch(r.Context(), advanced.SemanticQuery{
			Text:      in.Text,
			Embedding: in.Embedding,
			NodeID:    in.NodeID,
		}, advanced.SemanticOptions{
			EmbeddingKind: in.EmbeddingKind,
			Threshold:     in.Threshold,
			Limit:         in.Limit,
		})
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func (h *HTTPTransport) handleFindSimilarNodes(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.FindSimilarNodesInput
		if !decodeJSON(w, r, &in) {
			return
		}
		matches, err := kg.FindSimilarNodes(r.Context(), in.NodeID, advanced.SemanticOptions{
			Threshold: in.Threshold,
			Limit:     in.Limit,
		})
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

// --- index / admin handlers ---

func (h *HTTPTransport) handleCreateIndex(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.CreateIndexInput
		if !decodeJSON(w, r, &in) {
			return
		}
		spec := index.Spec{Paths: in.Paths, EmbeddingKind: in.EmbeddingKind}
		if err := kg.CreateIndex(in.Name, index.Kind(in.Kind), spec); writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": in.Name})
	}
}

func (h *HTTPTransport) handleInvalidate(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in mcptools.InvalidateCacheInput
		if !decodeJSON(w, r, &in) {
			return
		}
		n := kg.Invalidate(cache.InvalidateCriteria{
			ExactKey: in.ExactKey,
			EntityID: in.EntityID,
		})
		writeJSON(w, http.StatusOK, map[string]int{"invalidated": n})
	}
}

func (h *HTTPTransport) handleClear(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kg.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func (h *HTTPTransport) handleStats(kg *facade.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := kg.Stats(r.Context())
		if writeErr(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// --- request/response plumbing ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing request body"})
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode HTTP response", "error", err)
	}
}

// writeErr translates a facade/kgerrors error into a JSON error response and
// reports whether the caller should stop handling the request.
func writeErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	status := http.StatusInternalServerError
	switch kgerrors.KindOf(err) {
	case kgerrors.NotFound:
		status = http.StatusNotFound
	case kgerrors.InvalidArgument:
		status = http.StatusBadRequest
	case kgerrors.AlreadyExists:
		status = http.StatusConflict
	case kgerrors.ResultTooLarge:
		status = http.StatusRequestEntityTooLarge
	case kgerrors.Unsupported:
		status = http.StatusNotImplemented
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
	return true
}
