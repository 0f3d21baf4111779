// Package notify composes news digests and keyword alerts and delivers them
// to the user.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// PerCategory caps the headlines listed per category in a digest.
const PerCategory = 3

// Edition names a consolidation digest.
type Edition string

const (
	Morning Edition = "morning"
	Evening Edition = "evening"
)

func (e Edition) title() string {
	if e == Evening {
		return "Resumen de la tarde"
	}
	return "Resumen de la mañana"
}

// Notifier delivers a plain-text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. It is used when no chat is configured.
type LogNotifier struct{}

// Notify logs text at info level.
func (LogNotifier) Notify(_ context.Context, text string) error {
	slog.Info("notification", "text", text)
	return nil
}

// DocumentSource lists the documents published since a point in time.
type DocumentSource interface {
	Recent(ctx context.Context, since time.Time) ([]models.Document, error)
}

// Preferences exposes the stored user configuration.
type Preferences interface {
	Get(ctx context.Context) (models.UserConfiguration, error)
}

// Digester builds consolidation digests and keyword alerts.
type Digester struct {
	docs     DocumentSource
	prefs    Preferences
	notifier Notifier
	now      func() time.Time
}

// NewDigester creates a Digester.
func NewDigester(docs DocumentSource, prefs Preferences, notifier Notifier) *Digester {
	return &Digester{docs: docs, prefs: prefs, notifier: notifier, now: time.Now}
}

// SendDigest delivers the digest of the last retention window for the
// categories active today. It returns the number of headlines sent; nothing
// is sent when there are none.
func (d *Digester) SendDigest(ctx context.Context, edition Edition) (int, error) {
	now := d.now()

	cfg, err := d.prefs.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load preferences: %w", err)
	}
	docs, err := d.docs.Recent(ctx, now.Add(-models.RetentionWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to load recent documents: %w", err)
	}

	active := cfg.ActiveCategories(models.WeekdayOf(now.In(models.Lima)))
	text, n := ComposeDigest(edition, docs, active, cfg.PreferredSources, now)
	if n == 0 {
		slog.Info("digest skipped, no headlines", "edition", edition)
		return 0, nil
	}
	if err := d.notifier.Notify(ctx, text); err != nil {
		return 0, fmt.Errorf("failed to send digest: %w", err)
	}
	slog.Info("digest sent", "edition", edition, "headlines", n)
	return n, nil
}

// ComposeDigest renders docs grouped by the active categories, in category
// display order. Preferred sources are listed first inside a category.
// It returns the text and the number of headlines in it.
func ComposeDigest(edition Edition, docs []models.Document, active []models.Category, preferred []string, now time.Time) (string, int) {
	groups := map[models.Category][]models.Document{}
	for _, doc := range docs {
		if slices.Contains(active, doc.Category) {
			groups[doc.Category] = append(groups[doc.Category], doc)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", edition.title(), now.In(models.Lima).Format("02/01/2006"))

	count := 0
	for _, cat := range models.AllCategories() {
		group := groups[cat]
		if len(group) == 0 {
			continue
		}
		slices.SortStableFunc(group, func(a, b models.Document) int {
			ap, bp := slices.Contains(preferred, a.SourceName), slices.Contains(preferred, b.SourceName)
			switch {
			case ap && !bp:
				return -1
			case bp && !ap:
				return 1
			}
			return b.PublishedAt.Compare(a.PublishedAt)
		})

		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(cat.String()))
		for _, doc := range group[:min(len(group), PerCategory)] {
			fmt.Fprintf(&b, "- %s (%s)\n", doc.Title, doc.SourceName)
			count++
		}
	}
	return b.String(), count
}
