package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/internal/elasticsearch"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var (
	searchLimit    int
	searchArchive  bool
	searchCategory string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the stored news",
	Long: `Search today's news by text, newest first.

Examples:
  # Basic search
  newsapp search "congreso"

  # Limit results
  newsapp search "sunat" --limit 5

  # Search every archived article (requires archive.enabled)
  newsapp search "elecciones" --archive --category politica

  # JSON output for scripting
  newsapp search "dólar" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(searchCmd, statsCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", store.DefaultSearchLimit, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchArchive, "archive", false, "Search the long-term archive")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "Archive only: restrict to a category")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	query := args[0]
	return withApp(ctx, func(a *app.App) error {
		var (
			docs []models.Document
			err  error
		)
		if searchArchive {
			if a.Archive == nil {
				return fmt.Errorf("archive is not enabled - set archive.enabled")
			}
			opts := elasticsearch.SearchOptions{Query: query, Limit: searchLimit}
			if searchCategory != "" {
				if opts.Category, err = models.ParseCategory(searchCategory); err != nil {
					return err
				}
			}
			docs, err = a.Archive.Search(ctx, opts)
		} else {
			docs, err = a.Store.Search(ctx, query, searchLimit)
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if ok, err := printJSON(cmd.OutOrStdout(), docs); ok {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d results:\n\n", len(docs))
		printDocuments(cmd.OutOrStdout(), docs)
		return nil
	})
}

func printDocuments(w io.Writer, docs []models.Document) {
	for i, doc := range docs {
		fmt.Fprintf(w, "─── Result %d ───\n", i+1)
		fmt.Fprintf(w, "Title:    %s\n", doc.Title)
		fmt.Fprintf(w, "Source:   %s · %s · %s\n", doc.SourceName, doc.Category, doc.PublishedAt.In(models.Lima).Format("02/01/2006 15:04"))
		fmt.Fprintf(w, "URL:      %s\n", doc.OriginalURL)
		fmt.Fprintf(w, "ID:       %s\n", doc.ID)
		if doc.ExecutiveSummary != "" {
			fmt.Fprintf(w, "Summary:  %s\n", doc.ExecutiveSummary)
		}
		fmt.Fprintf(w, "\n%s\n\n", models.Truncate(doc.FullContent, 300))
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		stats, err := a.Stats(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, stats); ok {
			return err
		}

		fmt.Fprintf(out, "Documents: %d (%d in the last 24h)\n", stats.Total, stats.Recent)
		fmt.Fprintf(out, "Saved:     %d\n", stats.Saved)
		if stats.LastIngestion.IsZero() {
			fmt.Fprintln(out, "Last run:  never")
		} else {
			fmt.Fprintf(out, "Last run:  %s (%s ago)\n",
				stats.LastIngestion.In(models.Lima).Format("02/01/2006 15:04"),
				time.Since(stats.LastIngestion).Round(time.Minute))
		}
		for _, cat := range models.AllCategories() {
			if n := stats.ByCategory[cat]; n > 0 {
				fmt.Fprintf(out, "  %-16s %d\n", cat, n)
			}
		}
		return nil
	})
}
