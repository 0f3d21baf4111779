package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch every configured source once",
	Long: `Fetch every active source concurrently, normalize the items and store them.

A failing source is skipped; the command fails only when no source
produced a document.

Example:
  newsapp ingest`,
	RunE: runIngest,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete unsaved news older than 24 hours",
	RunE:  runSweep,
}

var replaySince time.Duration

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-ingest raw feeds kept in the S3 archive",
	Long: `Re-ingest the raw feed bodies archived in S3/MinIO during earlier runs.

Requires storage.enabled. Items older than 24 hours are skipped.

Example:
  newsapp replay --since 6h`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(ingestCmd, sweepCmd, replayCmd)

	replayCmd.Flags().DurationVar(&replaySince, "since", 24*time.Hour, "Replay feeds fetched within this window")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		result, err := a.Pipeline.Refresh(ctx)
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		removed, err := a.Pipeline.Sweep(ctx)
		if err != nil {
			return err
		}
		if ok, err := printJSON(cmd.OutOrStdout(), map[string]int{"removed": removed}); ok {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired documents\n", removed)
		return nil
	})
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		result, err := a.Pipeline.Replay(ctx, time.Now().Add(-replaySince))
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	})
}

func printResult(cmd *cobra.Command, result *pipeline.Result) error {
	out := cmd.OutOrStdout()

	if ok, err := printJSON(out, map[string]any{
		"fetched":  result.DocsFetched,
		"stored":   result.DocsStored,
		"new":      len(result.NewDocuments),
		"archived": result.DocsArchived,
		"duration": result.Duration.String(),
	}); ok {
		return err
	}

	fmt.Fprintf(out, "Fetched %d documents, stored %d (%d new) in %s\n",
		result.DocsFetched, result.DocsStored, len(result.NewDocuments), result.Duration.Round(time.Millisecond))
	for _, src := range result.Sources {
		if src.Err != nil {
			fmt.Fprintf(out, "  ✗ %-16s %v\n", src.Name, src.Err)
			continue
		}
		fmt.Fprintf(out, "  ✓ %-16s %d\n", src.Name, src.Count)
	}
	if result.DocsArchived > 0 {
		fmt.Fprintf(out, "Archived %d documents\n", result.DocsArchived)
	}
	return nil
}
