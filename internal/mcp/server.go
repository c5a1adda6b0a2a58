// Package mcp provides an MCP (Model Context Protocol) server for spikenet.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/ratelimit"
	"github.com/nvandessel/spikenet/internal/store"
)

// Server wraps the MCP SDK server and exposes simulation tools.
type Server struct {
	server       *sdk.Server
	settings     *config.Config
	runs         *store.RunStore
	home         string
	outputRoot   string
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	// simMu serializes simulations; each one already saturates a core.
	simMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Name     string         // Server name (e.g., "spikenet")
	Version  string         // Server version
	Settings *config.Config // Loaded spikenet configuration
	Logger   *slog.Logger   // Operational logger; nil discards

	// HomeDir holds the archive, the audit log and tool run outputs.
	// Empty means ~/.spikenet.
	HomeDir string
}

// NewServer creates a new MCP server with spikenet tools. The run archive
// is opened even when archiving is disabled for the CLI, since the tools
// list and read archived runs.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	home := cfg.HomeDir
	if home == "" {
		var err error
		if home, err = config.HomeDir(); err != nil {
			return nil, err
		}
	}

	archivePath := settings.Archive.Path
	if archivePath == "" {
		archivePath = filepath.Join(home, "runs.db")
	}
	runs, err := store.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}

	outputRoot := filepath.Join(home, "runs")
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		settings:     settings,
		runs:         runs,
		home:         home,
		outputRoot:   outputRoot,
		logger:       logger,
		auditLogger:  NewAuditLogger(home),
		toolLimiters: ratelimit.NewToolLimiters(),
	}

	if err := s.registerTools(); err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()

	return err
}

// Close closes the archive and the audit log.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.runs.Close(); err != nil {
		return err
	}
	return auditErr
}
