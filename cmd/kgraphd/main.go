// Package main is the entry point for kgraphd: an embeddable process that
// exposes the knowledge-graph engine's facade over MCP (stdio or SSE) and,
// optionally, a plain JSON HTTP transport.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kgraphdb/kgraph/internal/config"
	"github.com/kgraphdb/kgraph/internal/facade"
	"github.com/kgraphdb/kgraph/internal/transport"
	"github.com/kgraphdb/kgraph/pkg/mcptools"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"
	mcptransport "github.com/ThinkInAIXYZ/go-mcp/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SetupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kg, err := facade.New(ctx, cfg, facade.WithLogger(facade.SlogLogger{}))
	if err != nil {
		log.Fatalf("failed to initialize knowledge graph engine: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := kg.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during engine shutdown", "error", err)
		}
	}()

	var httpTransport *transport.HTTPTransport
	if cfg.HTTP {
		httpTransport = transport.NewHTTPTransport(cfg.HTTPAddr)
		go func() {
			slog.Info("starting JSON HTTP transport", "addr", cfg.HTTPAddr)
			if err := httpTransport.Start(kg); err != nil {
				slog.Error("JSON HTTP transport exited", "error", err)
			}
		}()
	}

	var t mcptransport.ServerTransport
	usingStreamableHTTP := cfg.MCPStreamableHTTP
	if usingStreamableHTTP {
		addr := cfg.MCPStreamableHTTPAddr
		slog.Info("Streamable HTTP MCP transport enabled", "addr", addr, "endpoint", cfg.MCPStreamableHTTPEndpoint)
		t, err = mcptransport.NewSSEServerTransport(addr)
		if err != nil {
			log.Fatalf("failed to initialize Streamable HTTP transport: %v", err)
		}
	} else {
		slog.Info("starting MCP over stdio")
		t = mcptransport.NewStdioServerTransport()
	}

	srv, err := mcpserver.NewServer(
		t,
		mcpserver.WithServerInfo(protocol.Implementation{
			Name:    "kgraphd",
			Version: "0.1.0",
		}),
		mcpserver.WithInstructions("kgraphd exposes a knowledge-graph engine: nodes, edges, structured queries, path finding, pattern matching, and semantic search."),
	)
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	tools := mcptools.NewToolManager(kg)
	if err := tools.RegisterTools(srv); err != nil {
		log.Fatalf("failed to register MCP tools: %v", err)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if httpTransport != nil {
			_ = httpTransport.Shutdown(shutdownCtx)
		}
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}
