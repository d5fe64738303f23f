package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"edurag/internal/mcp"
	"edurag/internal/rag"
	"edurag/internal/service"
)

func newIngestCommand(open Opener) *cobra.Command {
	var (
		windowSize int
		overlap    int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <collection> <file>...",
		Short: "Ingest documents into a collection",
		Long: `Loads, chunks, embeds and indexes the given files. Unchanged files are skipped.
Each file succeeds or fails on its own; the command fails only if every file failed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				req := service.IngestRequest{
					Collection: args[0],
					Paths:      args[1:],
					WindowSize: windowSize,
				}
				if cmd.Flags().Changed("overlap") {
					req.Overlap = &overlap
				}
				report, err := env.Service.Ingest(ctx, req)
				if err != nil && len(report.Documents) == 0 {
					return err
				}
				if asJSON {
					if err := printJSON(cmd, report); err != nil {
						return err
					}
				} else {
					w := cmd.OutOrStdout()
					for _, doc := range report.Documents {
						switch {
						case doc.Error != "":
							fmt.Fprintf(w, "FAIL  %s: %s\n", doc.Path, doc.Error)
						case doc.Unchanged:
							fmt.Fprintf(w, "SKIP  %s (unchanged)\n", doc.Path)
						default:
							fmt.Fprintf(w, "OK    %s (%d pages, %d chunks)\n", doc.Path, doc.Pages, doc.Chunks)
						}
					}
					fmt.Fprintf(w, "%d succeeded, %d failed\n", report.Succeeded, report.Failed)
				}
				if report.Failed > 0 && report.Succeeded == 0 {
					return fmt.Errorf("all %d documents failed", report.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&windowSize, "window-size", 0, "pre-chunk window in characters (0 uses the configured default)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "characters shared by adjacent windows (0 disables overlap)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")
	return cmd
}

func newAskCommand(open Opener) *cobra.Command {
	var (
		backend string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "ask <collection> <question>",
		Short: "Ask a question about a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if backend == "" {
					backend = env.DefaultBackend
				}
				answer, err := env.Service.Ask(ctx, service.AskRequest{
					Collection: args[0],
					Question:   args[1],
					Backend:    backend,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, answer)
				}
				printAnswer(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "answering backend: groq, gemini or ollama")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	return cmd
}

func printAnswer(w io.Writer, answer rag.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, src := range answer.Sources {
		if src.Page > 0 {
			fmt.Fprintf(w, "  [%d] %s, page %d (%.2f)  id=%s\n", i+1, src.SourceID, src.Page, src.Score, src.ID)
		} else {
			fmt.Fprintf(w, "  [%d] %s (%.2f)  id=%s\n", i+1, src.SourceID, src.Score, src.ID)
		}
	}
}

func newFeedbackCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:       "feedback <chunk-id> <up|down>",
		Short:     "Vote a retrieved chunk up or down",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if err := env.Service.RecordFeedback(ctx, service.FeedbackRequest{ChunkID: args[0], Direction: args[1]}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s vote for %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newSummarizeCommand(open Opener) *cobra.Command {
	var (
		backend      string
		instructions string
	)
	cmd := &cobra.Command{
		Use:   "summarize <collection> <source>...",
		Short: "Summarize ingested documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if backend == "" {
					backend = env.DefaultBackend
				}
				resp, err := env.Service.Summarize(ctx, service.SummarizeRequest{
					Collection:   args[0],
					Sources:      args[1:],
					Backend:      backend,
					Instructions: instructions,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "answering backend: groq, gemini or ollama")
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "extra instructions for the summary")
	return cmd
}

func newStatsCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <collection>",
		Short: "Show what is indexed in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				stats, err := env.Service.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
}

func newDeleteCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection's index and records",
		Long:  "Drops the vector index and stored chunks of a collection. Uploaded files are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if err := env.Service.DeleteCollection(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted collection %s\n", args[0])
				return nil
			})
		},
	}
}

func newServeCommand(open Opener) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if env.Serve == nil {
					return errors.New("serving is not available in this environment")
				}
				if addr == "" {
					addr = ":" + env.APIPort
				}
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return env.Serve(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :API_PORT)")
	return cmd
}

func newMCPCommand(open Opener, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				return mcp.NewServer(env.Service, env.DefaultBackend, version).Serve(ctx)
			})
		},
	}
}
