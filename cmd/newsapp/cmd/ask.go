package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question",
	Long: `Ask the news assistant a question in Spanish.

With a question the command answers once. Without one it starts an
interactive conversation that keeps context between turns; an empty
line or Ctrl-D ends it.

Examples:
  newsapp ask "¿qué pasó hoy en política?"
  newsapp ask`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		session := a.Assistant.NewSession()
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			resp, err := session.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResponse(out, resp)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				return nil
			}
			resp, err := session.Ask(ctx, line)
			if err != nil {
				return err
			}
			if err := printResponse(out, resp); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	})
}

func printResponse(w io.Writer, resp *models.Response) error {
	if ok, err := printJSON(w, resp); ok {
		return err
	}

	fmt.Fprintf(w, "%s\n", resp.Text)
	if len(resp.Documents) > 0 {
		fmt.Fprintln(w)
		for _, doc := range resp.Documents {
			fmt.Fprintf(w, "  • %s (%s) [%s]\n", doc.Title, doc.SourceName, doc.ID)
		}
	}
	if resp.SuggestedAction != models.ActionNone {
		fmt.Fprintf(w, "\nSugerencia: %s\n", resp.SuggestedAction)
	}
	fmt.Fprintln(w)
	return nil
}
