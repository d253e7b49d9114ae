package facade

import (
	"context"
	"log/slog"

	"github.com/kgraphdb/kgraph/internal/graph"
)

// Logger is the optional structured-logging collaborator. Absence
// falls back to NoopLogger; SlogLogger adapts the ambient log/slog default.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// SlogLogger adapts a log/slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func (s SlogLogger) Debug(msg string, fields ...any) { s.logger().Debug(msg, fields...) }
func (s SlogLogger) Info(msg string, fields ...any)  { s.logger().Info(msg, fields...) }
func (s SlogLogger) Warn(msg string, fields ...any)  { s.logger().Warn(msg, fields...) }
func (s SlogLogger) Error(msg string, fields ...any) { s.logger().Error(msg, fields...) }

func (s SlogLogger) logger() *slog.Logger {
	if s.L != nil {
		return s.L
	}
	return slog.Default()
}

// ConfigProvider is the optional external configuration collaborator,
// distinct from internal/config.Config which is what builds the Facade
// itself; this one lets a host application inject dynamic overrides.
type ConfigProvider interface {
	Get(path string, def any) any
}

// NoopConfigProvider always returns the caller's default.
type NoopConfigProvider struct{}

func (NoopConfigProvider) Get(_ string, def any) any { return def }

// SecurityHooks is the optional named-policy-callback collaborator;
// absence is equivalent to permit, matching NoopSecurityHooks below.
type SecurityHooks interface {
	ApplyNodeSecurityPolicies(ctx context.Context, node *graph.Node) error
	ApplyEdgeSecurityPolicies(ctx context.Context, edge *graph.Edge) error
}

// NoopSecurityHooks permits every operation.
type NoopSecurityHooks struct{}

func (NoopSecurityHooks) ApplyNodeSecurityPolicies(context.Context, *graph.Node) error { return nil }
func (NoopSecurityHooks) ApplyEdgeSecurityPolicies(context.Context, *graph.Edge) error { return nil }

// PerformanceMonitor is the optional timer/metric collaborator.
type PerformanceMonitor interface {
	StartTimer(name string) string
	EndTimer(id string)
	RecordMetric(name string, v float64)
	GetMetrics() map[string]any
}

// NoopPerformanceMonitor discards every timer and metric.
type NoopPerformanceMonitor struct{}

func (NoopPerformanceMonitor) StartTimer(string) string     { return "" }
func (NoopPerformanceMonitor) EndTimer(string)              {}
func (NoopPerformanceMonitor) RecordMetric(string, float64) {}
func (NoopPerformanceMonitor) GetMetrics() map[string]any   { return map[string]any{} }

// EmbeddingProvider is the optional embedding collaborator. Absence
// triggers the hash-based pseudo-embedding fallback for the cache
// (pseudoEmbedding in facade.go) and, for semantic search with no
// embedding available, the full-text or substring fallback
// (advanced.Engine.SemanticSearch).
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// embedderAdapter adapts pkg/embedder.Embedder (EmbedQuery) to the narrower
// EmbeddingProvider shape the facade's collaborators expect.
type embedderAdapter struct {
	embed interface {
		EmbedQuery(ctx context.Context, text string) ([]float32, error)
	}
}

func (a embedderAdapter) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return a.embed.EmbedQuery(ctx, text)
}
