package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"edurag/internal/app"
	"edurag/internal/cli"
	"edurag/internal/config"
)

var version = "dev"

func main() {
	root := cli.NewRootCommand(open, version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// open loads configuration and builds the application. Logs go to stderr so that
// command output and the MCP stdio stream stay clean.
func open(ctx context.Context) (*cli.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(app.NewLogger(cfg, os.Stderr))

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &cli.Env{
		Service:        a.Service,
		DefaultBackend: cfg.DefaultBackend,
		Serve:          a.Serve,
		APIPort:        cfg.APIPort,
		Close:          a.Close,
	}, nil
}
