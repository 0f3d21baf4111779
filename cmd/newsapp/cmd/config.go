package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the user preferences",
	Long: `Show or change the stored user preferences.

Examples:
  newsapp config show
  newsapp config day lunes deportes economia --exclusive
  newsapp config exclude farandula
  newsapp config follow "Sunat"
  newsapp config times 07:30 18:00
  newsapp config alerts off
  newsapp config set-key <api key>`,
}

var dayExclusive bool

func init() {
	rootCmd.AddCommand(configCmd)

	dayCmd := &cobra.Command{
		Use:   "day [weekday] [categories...]",
		Short: "Set the categories shown on one weekday",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runConfigDay,
	}
	dayCmd.Flags().BoolVar(&dayExclusive, "exclusive", false, "Show only these categories that day")

	configCmd.AddCommand(
		&cobra.Command{Use: "show", Short: "Print the preferences", RunE: runConfigShow},
		dayCmd,
		&cobra.Command{Use: "exclude [category]", Short: "Hide a category every day", Args: cobra.ExactArgs(1), RunE: runConfigCategory(true)},
		&cobra.Command{Use: "include [category]", Short: "Stop hiding a category", Args: cobra.ExactArgs(1), RunE: runConfigCategory(false)},
		&cobra.Command{Use: "follow [keyword]", Short: "Follow a keyword for alerts", Args: cobra.ExactArgs(1), RunE: runConfigFollow},
		&cobra.Command{Use: "prefer [source]", Short: "List a source first in digests", Args: cobra.ExactArgs(1), RunE: runConfigPrefer},
		&cobra.Command{Use: "alerts [on|off]", Short: "Enable or disable keyword alerts", Args: cobra.ExactArgs(1), RunE: runConfigAlerts},
		&cobra.Command{Use: "times [morning] [evening]", Short: "Set the digest times (HH:MM)", Args: cobra.RangeArgs(1, 2), RunE: runConfigTimes},
		&cobra.Command{Use: "set-key [key]", Short: "Save the generation service API key", Args: cobra.ExactArgs(1), RunE: runConfigSetKey},
	)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	return withApp(ctx, func(a *app.App) error {
		prefs, err := a.Preferences.Get(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, prefs); ok {
			return err
		}

		for _, day := range models.Weekdays() {
			pref, ok := prefs.WeeklyPreferences[day]
			if !ok {
				continue
			}
			mode := ""
			if pref.ExclusiveMode {
				mode = " (exclusive)"
			}
			fmt.Fprintf(out, "%-10s %s%s\n", day, models.JoinCategories(pref.ActiveCategories), mode)
		}
		fmt.Fprintf(out, "Excluded:  %s\n", models.JoinCategories(prefs.ExcludedCategories))
		fmt.Fprintf(out, "Sources:   %s\n", strings.Join(prefs.PreferredSources, ", "))
		fmt.Fprintf(out, "Keywords:  %s\n", strings.Join(prefs.FollowedKeywords, ", "))
		fmt.Fprintf(out, "Alerts:    %t\n", prefs.AlertsEnabled)
		fmt.Fprintf(out, "Digests:   %s / %s\n", prefs.MorningConsolidation, prefs.EveningConsolidation)
		return nil
	})
}

func runConfigDay(cmd *cobra.Command, args []string) error {
	day, err := models.ParseWeekday(args[0])
	if err != nil {
		return err
	}
	cats, err := parseCategories(args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		return a.Preferences.SetDayPreference(ctx, day, cats, dayExclusive)
	})
}

func runConfigCategory(exclude bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cat, err := models.ParseCategory(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		return withApp(ctx, func(a *app.App) error {
			if exclude {
				return a.Preferences.ExcludeCategory(ctx, cat)
			}
			return a.Preferences.IncludeCategory(ctx, cat)
		})
	}
}

func runConfigFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		return a.Preferences.FollowKeyword(ctx, args[0])
	})
}

func runConfigPrefer(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		return a.Preferences.PreferSource(ctx, args[0])
	})
}

func runConfigAlerts(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "si", "sí":
		enabled = true
	case "off", "no":
	default:
		v, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		enabled = v
	}

	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		return a.Preferences.SetAlerts(ctx, enabled)
	})
}

func runConfigTimes(cmd *cobra.Command, args []string) error {
	morning, evening := args[0], ""
	if len(args) > 1 {
		evening = args[1]
	}

	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		return a.Preferences.SetConsolidationTimes(ctx, morning, evening)
	})
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	return withApp(ctx, func(a *app.App) error {
		if err := a.SetAPIKey(ctx, strings.TrimSpace(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
		return nil
	})
}

func parseCategories(names []string) ([]models.Category, error) {
	cats := make([]models.Category, 0, len(names))
	for _, name := range names {
		cat, err := models.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}
