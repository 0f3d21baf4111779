package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/internal/llm"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var saveCmd = &cobra.Command{
	Use:   "save [id]",
	Short: "Keep a news item past the 24 hour window",
	Args:  cobra.ExactArgs(1),
	RunE:  runSave(true),
}

var unsaveCmd = &cobra.Command{
	Use:   "unsave [id]",
	Short: "Remove a news item from the saved collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runSave(false),
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List the saved news",
	RunE:  runSaved,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [id]",
	Short: "Generate the executive summary of a news item",
	Long: `Generate and store a two or three sentence summary of one news item.

Requires a generation backend: set llm.api_key, run
"newsapp config set-key", or use llm.provider openai with a local server.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(saveCmd, unsaveCmd, savedCmd, summarizeCmd)
}

func runSave(saved bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return withApp(ctx, func(a *app.App) error {
			id := args[0]
			if !saved {
				if err := a.Store.Unsave(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from saved\n", id)
				return nil
			}

			doc, err := a.Store.Get(ctx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("%w: %s", store.ErrNotFound, id)
			}
			if err := a.Store.Save(ctx, *doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", doc.Title)
			return nil
		})
	}
}

func runSaved(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		saved, err := a.Store.Saved(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, saved); ok {
			return err
		}
		if len(saved) == 0 {
			fmt.Fprintln(out, "No saved news.")
			return nil
		}
		for _, s := range saved {
			fmt.Fprintf(out, "%s  %s (%s) [%s]\n",
				s.SavedAt.In(models.Lima).Format("02/01/2006"), s.Title, s.SourceName, s.ID)
		}
		return nil
	})
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		summary, err := a.Assistant.Summarize(ctx, args[0])
		if errors.Is(err, llm.ErrNotConfigured) {
			return fmt.Errorf("no generation backend configured - run \"newsapp config set-key\"")
		}
		if err != nil {
			return err
		}
		if ok, err := printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0], "summary": summary}); ok {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	})
}
