package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/events"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// alertTimeout bounds one alert delivery triggered from an event.
const alertTimeout = 30 * time.Second

// Alerts returns the headlines among docs that mention a followed keyword,
// keyed by keyword. Keywords keep their configured order.
func Alerts(docs []models.Document, keywords []string) map[string][]models.Document {
	out := map[string][]models.Document{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		for _, doc := range docs {
			if doc.Matches(kw) {
				out[kw] = append(out[kw], doc)
			}
		}
	}
	return out
}

// SendAlerts notifies about new documents matching the followed keywords.
// It does nothing when alerts are disabled.
func (d *Digester) SendAlerts(ctx context.Context, docs []models.Document) (int, error) {
	cfg, err := d.prefs.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load preferences: %w", err)
	}
	if !cfg.AlertsEnabled || len(cfg.FollowedKeywords) == 0 || len(docs) == 0 {
		return 0, nil
	}

	matches := Alerts(docs, cfg.FollowedKeywords)
	if len(matches) == 0 {
		return 0, nil
	}

	var b strings.Builder
	b.WriteString("Alerta de noticias\n")
	seen := map[string]bool{}
	for _, kw := range cfg.FollowedKeywords {
		for _, doc := range matches[strings.TrimSpace(kw)] {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", kw, doc.Title, doc.SourceName)
		}
	}

	if err := d.notifier.Notify(ctx, b.String()); err != nil {
		return 0, fmt.Errorf("failed to send alert: %w", err)
	}
	return len(seen), nil
}

// Listener sends keyword alerts for the new documents of every completed
// ingestion.
func (d *Digester) Listener() events.Listener {
	return func(e events.Event) {
		ev, ok := e.(events.IngestionCompleteEvent)
		if !ok || len(ev.NewDocuments) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		n, err := d.SendAlerts(ctx, ev.NewDocuments)
		if err != nil {
			slog.Warn("keyword alert failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("keyword alert sent", "documents", n)
		}
	}
}
