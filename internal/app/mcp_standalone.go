package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"librarydesk/internal/config"
	mcpserver "librarydesk/internal/mcp"
)

// ServeMCP runs librarydesk as a standalone MCP server on stdin/stdout
// with no window. Destructive tool calls wait for approval from a running
// console through the shared database. It returns when stdin closes or
// ctx is cancelled.
func ServeMCP(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	core, err := NewCore(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer core.Close(context.Background())

	// A backend that is down must not stop the server; tools report the
	// failure and refresh_library retries.
	if err := core.Library.Load(ctx); err != nil {
		logger.Warn("initial load failed", zap.Error(err))
	}

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Name:      cfg.MCP.Name,
		Logger:    logger,
		Library:   core.Library,
		Imports:   core.Imports,
		Exports:   core.Exports,
		Approvals: core.Approvals,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
