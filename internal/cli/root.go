// Package cli implements the edurag command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"edurag/internal/service"
)

// Env is what a command needs to run against the service.
type Env struct {
	Service        service.Service
	DefaultBackend string
	// Serve runs the HTTP API until ctx is cancelled. Nil when the environment cannot serve.
	Serve func(ctx context.Context, addr string) error
	// APIPort is the port serve listens on when --addr is not given.
	APIPort string
	Close   func() error
}

// Opener builds an Env. It is called once per command, after flags are parsed.
type Opener func(ctx context.Context) (*Env, error)

// NewRootCommand builds the command tree. version is reported by --version and
// the MCP server.
func NewRootCommand(open Opener, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "edurag",
		Short: "Study assistant over your course documents",
		Long: `edurag ingests course documents (PDF, DOCX, ODT, RTF, XLSX, Markdown, text)
into per-subject collections and answers questions from them, citing the chunks used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCommand(open),
		newAskCommand(open),
		newFeedbackCommand(open),
		newSummarizeCommand(open),
		newStatsCommand(open),
		newDeleteCommand(open),
		newServeCommand(open),
		newMCPCommand(open, version),
	)
	return root
}

// withEnv opens an Env, runs fn and closes the Env.
func withEnv(cmd *cobra.Command, open Opener, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if env.Close != nil {
			_ = env.Close()
		}
	}()
	return fn(ctx, env)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
