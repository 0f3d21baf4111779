package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/internal/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server over stdio.

Tools:
  - search_news:   Search today's news (or the archive)
  - get_news:      Get one news item by id
  - daily_news:    List today's news, optionally by category
  - ask_assistant: Ask the conversational assistant
  - save_news:     Save or unsave a news item
  - news_stats:    Collection counts

Example:
  newsapp serve`,
	RunE: runServe,
}

var httpAddr string

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the HTTP API",
	Long: `Start the JSON HTTP API, including the /api/v1/news/stream server-sent events feed.

Example:
  newsapp serve-http --addr :8080`,
	RunE: runServeHTTP,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the periodic refresh, sweep and digest jobs",
	Long: `Run the cron scheduler until interrupted.

Sources are refreshed on scheduler.refresh, expired news are swept on
scheduler.sweep, and with scheduler.digests the morning and evening
digests follow the consolidation times stored in the preferences.`,
	RunE: runSchedule,
}

var digestCmd = &cobra.Command{
	Use:   "digest [morning|evening]",
	Short: "Send a digest now",
	Args:  cobra.ExactArgs(1),
	RunE:  runDigest,
}

func init() {
	rootCmd.AddCommand(serveCmd, serveHTTPCmd, scheduleCmd, digestCmd)

	serveHTTPCmd.Flags().StringVar(&httpAddr, "addr", "", "Listen address (default http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		server, err := a.MCPServer()
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

		return server.ServeStdio()
	})
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	addr := httpAddr
	if addr == "" {
		addr = GetConfig().HTTP.Addr
	}

	return withApp(ctx, func(a *app.App) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
		return a.HTTPServer().ListenAndServe(ctx, addr)
	})
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		s, err := a.Scheduler(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Scheduler running with %d jobs\n", s.Entries())
		return s.Run(ctx, a.Preferences)
	})
}

func runDigest(cmd *cobra.Command, args []string) error {
	edition := notify.Edition(args[0])
	if edition != notify.Morning && edition != notify.Evening {
		return fmt.Errorf("unknown edition %q: want morning or evening", args[0])
	}

	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		n, err := a.Digester.SendDigest(ctx, edition)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s digest with %d headlines\n", edition, n)
		return nil
	})
}
