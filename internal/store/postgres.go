package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var documentColumns = []string{
	"id", "title", "full_content", "executive_summary", "category", "source_name",
	"responsible_entity", "keywords", "published_at", "ingested_at", "original_url",
	"was_consulted", "consult_count", "is_saved",
}

var savedColumns = []string{
	"id", "title", "executive_summary", "category", "source_name",
	"published_at", "saved_at", "original_url", "tags",
}

const upsertDocumentSuffix = `ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	full_content = EXCLUDED.full_content,
	executive_summary = EXCLUDED.executive_summary,
	category = EXCLUDED.category,
	source_name = EXCLUDED.source_name,
	responsible_entity = EXCLUDED.responsible_entity,
	keywords = EXCLUDED.keywords,
	published_at = EXCLUDED.published_at,
	ingested_at = EXCLUDED.ingested_at,
	original_url = EXCLUDED.original_url,
	was_consulted = EXCLUDED.was_consulted,
	consult_count = EXCLUDED.consult_count,
	is_saved = documents.is_saved OR EXCLUDED.is_saved`

// PostgresStore keeps both collections in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	hub  *hub
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and creates the tables when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStore{pool: pool, hub: newHub(), now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			full_content TEXT NOT NULL,
			executive_summary TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			source_name TEXT NOT NULL,
			responsible_entity TEXT NOT NULL DEFAULT '',
			keywords TEXT[] NOT NULL DEFAULT '{}',
			published_at TIMESTAMPTZ NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL,
			original_url TEXT NOT NULL,
			was_consulted BOOLEAN NOT NULL DEFAULT FALSE,
			consult_count INT NOT NULL DEFAULT 0,
			is_saved BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS documents_published_at_idx ON documents (published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS documents_category_idx ON documents (category)`,
		`CREATE TABLE IF NOT EXISTS saved_documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			executive_summary TEXT NOT NULL,
			category TEXT NOT NULL,
			source_name TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL,
			original_url TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}'
		)`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) notify() {
	s.hub.publish(func(q Query) ([]models.Document, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.snapshot(ctx, q)
	})
}

func (s *PostgresStore) snapshot(ctx context.Context, q Query) ([]models.Document, error) {
	switch q.kind {
	case queryCategory:
		return s.ByCategory(ctx, q.category)
	case querySaved:
		saved, err := s.Saved(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]models.Document, len(saved))
		for i, sd := range saved {
			docs[i] = sd.AsDocument()
		}
		return docs, nil
	default:
		return s.All(ctx)
	}
}

// Subscribe implements Store.
func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (<-chan []models.Document, error) {
	return s.hub.subscribe(ctx, q, func(q Query) ([]models.Document, error) {
		return s.snapshot(ctx, q)
	})
}

func (s *PostgresStore) queryDocuments(ctx context.Context, b sq.SelectBuilder) ([]models.Document, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	var category string
	err := row.Scan(
		&d.ID, &d.Title, &d.FullContent, &d.ExecutiveSummary, &category, &d.SourceName,
		&d.ResponsibleEntity, &d.Keywords, &d.PublishedAt, &d.IngestedAt, &d.OriginalURL,
		&d.WasConsulted, &d.ConsultCount, &d.IsSaved,
	)
	if err != nil {
		return d, fmt.Errorf("failed to scan document: %w", err)
	}
	d.Category = models.Category(category)
	if len(d.Keywords) == 0 {
		d.Keywords = nil
	}
	return d, nil
}

func newestFirst(b sq.SelectBuilder) sq.SelectBuilder {
	return b.OrderBy("published_at DESC", "id")
}

// Get returns the document with id, or nil when it does not exist.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	query, args, err := psql.Select(documentColumns...).From("documents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	d, err := scanDocument(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// All returns the daily collection, newest first.
func (s *PostgresStore) All(ctx context.Context) ([]models.Document, error) {
	return s.queryDocuments(ctx, newestFirst(psql.Select(documentColumns...).From("documents")))
}

// ByCategory returns the daily documents of cat, newest first.
func (s *PostgresStore) ByCategory(ctx context.Context, cat models.Category) ([]models.Document, error) {
	return s.queryDocuments(ctx, newestFirst(psql.Select(documentColumns...).From("documents").
		Where(sq.Eq{"category": string(cat)})))
}

// Recent returns documents published at or after since, newest first.
func (s *PostgresStore) Recent(ctx context.Context, since time.Time) ([]models.Document, error) {
	return s.queryDocuments(ctx, newestFirst(psql.Select(documentColumns...).From("documents").
		Where(sq.GtOrEq{"published_at": since})))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query against title, content and keywords, newest first.
func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]models.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	return s.queryDocuments(ctx, newestFirst(psql.Select(documentColumns...).From("documents").
		Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"full_content": pattern},
			sq.Expr("array_to_string(keywords, ', ') ILIKE ?", pattern),
		})).
		Limit(uint64(limit)))
}

func (s *PostgresStore) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Count returns the size of the daily collection.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, psql.Select("count(*)").From("documents"))
}

// CountByCategory returns how many daily documents belong to cat.
func (s *PostgresStore) CountByCategory(ctx context.Context, cat models.Category) (int, error) {
	return s.count(ctx, psql.Select("count(*)").From("documents").Where(sq.Eq{"category": string(cat)}))
}

// Saved returns the saved collection, most recently saved first.
func (s *PostgresStore) Saved(ctx context.Context) ([]models.SavedDocument, error) {
	query, args, err := psql.Select(savedColumns...).From("saved_documents").OrderBy("saved_at DESC", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved documents: %w", err)
	}
	defer rows.Close()

	var saved []models.SavedDocument
	for rows.Next() {
		var d models.SavedDocument
		var category string
		if err := rows.Scan(&d.ID, &d.Title, &d.ExecutiveSummary, &category, &d.SourceName,
			&d.PublishedAt, &d.SavedAt, &d.OriginalURL, &d.Tags); err != nil {
			return nil, fmt.Errorf("failed to scan saved document: %w", err)
		}
		d.Category = models.Category(category)
		saved = append(saved, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read saved documents: %w", err)
	}
	return saved, nil
}

// Stats summarizes both collections.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (models.Stats, error) {
	stats := models.Stats{ByCategory: make(map[models.Category]int)}

	query, args, err := psql.
		Select("category", "count(*)").
		Column(sq.Expr("count(*) FILTER (WHERE published_at >= ?)", now.Add(-models.RetentionWindow))).
		From("documents").
		GroupBy("category").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var total, recent int
		if err := rows.Scan(&category, &total, &recent); err != nil {
			return stats, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByCategory[models.Category(category)] = total
		stats.Total += total
		stats.Recent += recent
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read stats: %w", err)
	}

	stats.Saved, err = s.count(ctx, psql.Select("count(*)").From("saved_documents"))
	return stats, err
}

func upsertDocument(doc models.Document) (string, []any, error) {
	keywords := doc.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return psql.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.Title, doc.FullContent, doc.ExecutiveSummary, string(doc.Category), doc.SourceName,
			doc.ResponsibleEntity, keywords, doc.PublishedAt, doc.IngestedAt, doc.OriginalURL,
			doc.WasConsulted, doc.ConsultCount, doc.IsSaved).
		Suffix(upsertDocumentSuffix).
		ToSql()
}

// Upsert inserts doc or replaces the document with the same id.
func (s *PostgresStore) Upsert(ctx context.Context, doc models.Document) error {
	query, args, err := upsertDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	s.notify()
	return nil
}

// UpsertAll upserts every document in one transaction.
func (s *PostgresStore) UpsertAll(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, doc := range docs {
			query, args, err := upsertDocument(doc)
			if err != nil {
				return fmt.Errorf("failed to build upsert: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("documents upserted", "count", len(docs))
	s.notify()
	return nil
}

func (s *PostgresStore) update(ctx context.Context, id string, b sq.UpdateBuilder) error {
	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.notify()
	return nil
}

// MarkConsulted flags the document as read and bumps its counter.
func (s *PostgresStore) MarkConsulted(ctx context.Context, id string) error {
	return s.update(ctx, id, psql.Update("documents").
		Set("was_consulted", true).
		Set("consult_count", sq.Expr("consult_count + 1")))
}

// SetSummary stores the executive summary of a document.
func (s *PostgresStore) SetSummary(ctx context.Context, id, summary string) error {
	return s.update(ctx, id, psql.Update("documents").Set("executive_summary", summary))
}

// SetSaved flips the saved flag of a daily document.
func (s *PostgresStore) SetSaved(ctx context.Context, id string, saved bool) error {
	return s.update(ctx, id, psql.Update("documents").Set("is_saved", saved))
}

// Save copies the reduced projection of doc into the saved collection and
// flags the daily document, if it is still there.
func (s *PostgresStore) Save(ctx context.Context, doc models.Document) error {
	sd := doc.SavedProjection(s.now())
	tags := sd.Tags
	if tags == nil {
		tags = []string{}
	}

	insert, insertArgs, err := psql.Insert("saved_documents").
		Columns(savedColumns...).
		Values(sd.ID, sd.Title, sd.ExecutiveSummary, string(sd.Category), sd.SourceName,
			sd.PublishedAt, sd.SavedAt, sd.OriginalURL, tags).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			executive_summary = EXCLUDED.executive_summary,
			saved_at = EXCLUDED.saved_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	flag, flagArgs, err := psql.Update("documents").Set("is_saved", true).Where(sq.Eq{"id": doc.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
		if _, err := tx.Exec(ctx, flag, flagArgs...); err != nil {
			return fmt.Errorf("failed to flag document %s: %w", doc.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Unsave removes id from the saved collection and clears the daily flag.
func (s *PostgresStore) Unsave(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM saved_documents WHERE id = $1", id); err != nil {
			return fmt.Errorf("failed to unsave document %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, "UPDATE documents SET is_saved = FALSE WHERE id = $1", id); err != nil {
			return fmt.Errorf("failed to clear saved flag %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Sweep deletes unsaved documents published before now minus the retention window.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Delete("documents").
		Where(sq.Lt{"published_at": now.Add(-models.RetentionWindow)}).
		Where(sq.Eq{"is_saved": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sweep: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep documents: %w", err)
	}
	s.notify()
	return int(tag.RowsAffected()), nil
}
