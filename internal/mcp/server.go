package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/memloop/memloop-mcp/internal/embedder"
	"github.com/memloop/memloop-mcp/internal/retriever"
	"github.com/memloop/memloop-mcp/internal/storage"
	"github.com/memloop/memloop-mcp/internal/vector"
)

const (
	// ServerName is the MCP server name
	ServerName = "memloop-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.memloop"
	// EnvDBPath overrides the database directory
	EnvDBPath = "MEMLOOP_DB_PATH"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	store     storage.Store
	embedder  *embedder.Lazy
	index     *vector.Index
	retriever *retriever.Retriever
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance. The embedding backend is
// not probed here; the first operation that needs it triggers lazy
// initialization.
func NewServer(dbPath string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dbPath == "" {
		dbPath = os.Getenv(EnvDBPath)
	}
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".memloop")
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbFile := filepath.Join(dbPath, "memloop.db")

	store, err := storage.NewSQLiteStore(dbFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewLazyFromEnv(logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to configure embedder: %w", err)
	}

	index := vector.NewIndex(store, emb, logger)
	retr := retriever.New(store, index, emb, logger)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:       mcpServer,
		store:     store,
		embedder:  emb,
		index:     index,
		retriever: retr,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.embedder.Close()
		_ = s.store.Close()
	}()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(saveObservationTool(), s.handleSaveObservation)
	s.mcp.AddTool(saveSummaryTool(), s.handleSaveSummary)
	s.mcp.AddTool(searchMemoryTool(), s.handleSearchMemory)
	s.mcp.AddTool(loadContextTool(), s.handleLoadContext)
	s.mcp.AddTool(backfillEmbeddingsTool(), s.handleBackfillEmbeddings)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
