// Package assistant answers conversational questions grounded on the stored news.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CristhianJ12/NewsApp/internal/intent"
	"github.com/CristhianJ12/NewsApp/internal/llm"
	"github.com/CristhianJ12/NewsApp/internal/reader"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// ErrGeneration wraps failures of the generation service while answering.
var ErrGeneration = errors.New("failed to generate answer")

const (
	retrievalLimit = 10
	// shortContentLength triggers a full-text fetch before summarizing.
	shortContentLength = 400
)

// Generator is the generation service used by the assistant.
type Generator interface {
	IsConfigured() bool
	Complete(ctx context.Context, systemPrompt, contextText, query string) (string, error)
	Summarize(ctx context.Context, content string) (string, error)
	ClassifyIntent(ctx context.Context, query string) (string, error)
}

// Preferences reads today's categories and applies day configurations.
type Preferences interface {
	ActiveCategoriesForToday(ctx context.Context) ([]models.Category, error)
	SetDayPreference(ctx context.Context, day models.Weekday, categories []models.Category, exclusive bool) error
}

// ArticleReader fetches the full text of an article page.
type ArticleReader interface {
	Read(ctx context.Context, pageURL string) (*reader.Article, error)
}

// Config holds assistant options.
type Config struct {
	// ModelIntentFallback asks the model for an intent when a free-text
	// search finds nothing.
	ModelIntentFallback bool
	// FullTextSummaries fetches the article page when stored content is short.
	FullTextSummaries bool
}

// Assistant orchestrates intent detection, retrieval and generation.
type Assistant struct {
	store  store.Store
	gen    Generator
	prefs  Preferences
	reader ArticleReader
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates an assistant. articles may be nil.
func New(st store.Store, gen Generator, prefs Preferences, articles ArticleReader, config Config) *Assistant {
	return &Assistant{
		store:  st,
		gen:    gen,
		prefs:  prefs,
		reader: articles,
		config: config,
		now:    time.Now,
		logger: slog.With("component", "assistant"),
	}
}

// Ask answers utterance. Precondition failures and empty results are
// returned as responses; only retrieval and generation failures are errors.
func (a *Assistant) Ask(ctx context.Context, utterance string, conv models.Conversation) (*models.Response, error) {
	if strings.TrimSpace(utterance) == "" {
		return &models.Response{Text: emptyUtteranceText, Type: models.ResponseError}, nil
	}
	if !a.gen.IsConfigured() {
		return &models.Response{
			Text:            llm.NotConfiguredMessage,
			Type:            models.ResponseError,
			SuggestedAction: models.ActionConfigurePreferences,
		}, nil
	}

	now := a.now()
	in := intent.Classify(utterance)
	docs, err := a.retrieve(ctx, in, utterance, now)
	if err != nil {
		return nil, err
	}

	if _, ok := in.(intent.SearchText); ok && len(docs) == 0 && a.config.ModelIntentFallback {
		in, docs, err = a.modelFallback(ctx, in, utterance, now)
		if err != nil {
			return nil, err
		}
	}

	a.logger.Debug("intent classified", "intent", intent.Name(in), "documents", len(docs))

	configure, isConfigure := in.(intent.ConfigureDay)
	if len(docs) == 0 && !isConfigure {
		return &models.Response{
			Text:            noResultsText,
			Type:            models.ResponseEmptyQuery,
			SuggestedAction: models.ActionRefreshSources,
		}, nil
	}

	var applied *models.DayPreference
	if isConfigure {
		if err := a.prefs.SetDayPreference(ctx, configure.Day, configure.Categories, true); err != nil {
			a.logger.Warn("failed to apply day configuration", "day", configure.Day, "error", err)
			return &models.Response{
				Text:            fmt.Sprintf("No pude configurar el %s: %v", configure.Day, err),
				Type:            models.ResponseConfigurationFailed,
				SuggestedAction: models.ActionConfigurePreferences,
			}, nil
		}
		applied = &models.DayPreference{ActiveCategories: configure.Categories, ExclusiveMode: true}
	}

	active, err := a.prefs.ActiveCategoriesForToday(ctx)
	if err != nil {
		a.logger.Warn("failed to load active categories", "error", err)
		active = models.AllCategories()
	}

	text, err := a.gen.Complete(ctx, SystemPrompt, BuildContext(docs, active, conv), utterance)
	if err != nil {
		if !isConfigure {
			return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		// The preference is already stored; confirm it without the model.
		a.logger.Warn("failed to generate configuration answer", "day", configure.Day, "error", err)
		text = fmt.Sprintf(configuredText, configure.Day, models.JoinCategories(configure.Categories))
	}

	if err := a.markConsulted(ctx, docs); err != nil {
		a.logger.Warn("failed to mark documents consulted", "error", err)
	}

	resp := &models.Response{
		Text:      text,
		Documents: docs[:min(len(docs), MaxContextDocuments)],
		Type:      models.ResponseInformative,
	}
	switch in.(type) {
	case intent.ConfigureDay:
		resp.Type = models.ResponseConfigurationSuccess
		resp.AppliedConfiguration = applied
	case intent.SearchCategory:
		resp.SuggestedAction = models.ActionSeeMoreCategory
	default:
		resp.SuggestedAction = models.ActionReadDetail
	}
	return resp, nil
}

func (a *Assistant) retrieve(ctx context.Context, in intent.Intent, utterance string, now time.Time) ([]models.Document, error) {
	var (
		docs []models.Document
		err  error
	)
	switch v := in.(type) {
	case intent.DailySummary:
		docs, err = a.store.Recent(ctx, now.Add(-models.RetentionWindow))
		if len(docs) > retrievalLimit {
			docs = docs[:retrievalLimit]
		}
	case intent.SearchCategory:
		docs, err = a.store.Search(ctx, v.Category.String(), retrievalLimit)
	case intent.SearchText:
		docs, err = a.store.Search(ctx, v.Text, retrievalLimit)
	case intent.ConfigureDay, intent.SavedNews, intent.RefreshSources, intent.Unrecognized:
		return nil, nil
	default:
		panic(fmt.Sprintf("assistant: unhandled intent %T", in))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return docs, nil
}

// modelFallback retries retrieval once with the intent the model suggests.
// Model failures keep the original intent.
func (a *Assistant) modelFallback(ctx context.Context, in intent.Intent, utterance string, now time.Time) (intent.Intent, []models.Document, error) {
	label, err := a.gen.ClassifyIntent(ctx, utterance)
	if err != nil {
		a.logger.Warn("model intent classification failed", "error", err)
		return in, nil, nil
	}
	parsed := intent.ParseModelLabel(label, utterance)
	if st, ok := parsed.(intent.SearchText); ok && st.Text == utterance {
		return in, nil, nil
	}
	docs, err := a.retrieve(ctx, parsed, utterance, now)
	if err != nil {
		return nil, nil, err
	}
	return parsed, docs, nil
}

func (a *Assistant) markConsulted(ctx context.Context, docs []models.Document) error {
	var errs []error
	for _, doc := range docs {
		if err := a.store.MarkConsulted(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Summarize generates and stores the executive summary of a document.
func (a *Assistant) Summarize(ctx context.Context, id string) (string, error) {
	if !a.gen.IsConfigured() {
		return "", llm.ErrNotConfigured
	}

	doc, err := a.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	content := doc.FullContent
	if a.config.FullTextSummaries && a.reader != nil && doc.OriginalURL != "" &&
		utf8.RuneCountInString(content) < shortContentLength {
		article, err := a.reader.Read(ctx, doc.OriginalURL)
		switch {
		case err != nil:
			a.logger.Warn("failed to read full article", "url", doc.OriginalURL, "error", err)
		case utf8.RuneCountInString(article.Text) > utf8.RuneCountInString(content):
			content = article.Text
		}
	}

	summary, err := a.gen.Summarize(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if err := a.store.SetSummary(ctx, id, summary); err != nil {
		return "", fmt.Errorf("failed to store summary: %w", err)
	}
	return summary, nil
}
