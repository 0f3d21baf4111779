// Package httpapi serves the news collection, the assistant and the
// preferences over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CristhianJ12/NewsApp/internal/elasticsearch"
	"github.com/CristhianJ12/NewsApp/internal/llm"
	"github.com/CristhianJ12/NewsApp/internal/pipeline"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Asker answers questions within one conversation.
type Asker interface {
	Ask(ctx context.Context, utterance string) (*models.Response, error)
}

// Summarizer produces and stores executive summaries.
type Summarizer interface {
	Summarize(ctx context.Context, id string) (string, error)
}

// Archive searches the long-term document index.
type Archive interface {
	Search(ctx context.Context, opts elasticsearch.SearchOptions) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Refresher runs an ingestion.
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.Result, error)
}

// Preferences reads and edits the user configuration.
type Preferences interface {
	Get(ctx context.Context) (models.UserConfiguration, error)
	SetDayPreference(ctx context.Context, day models.Weekday, categories []models.Category, exclusive bool) error
}

// IngestionClock reports the last successful ingestion.
type IngestionClock interface {
	LastIngestion(ctx context.Context) (time.Time, error)
}

// Deps are the components behind the routes. Archive, Refresher, Clock and
// Summarizer are optional; their routes answer 501 when missing.
type Deps struct {
	Store       store.Store
	Assistant   Asker
	Preferences Preferences
	Summarizer  Summarizer
	Archive     Archive
	Refresher   Refresher
	Clock       IngestionClock
}

// Server holds the gin engine.
type Server struct {
	engine *gin.Engine
	deps   Deps
	now    func() time.Time
}

// New builds the router.
func New(deps Deps) *Server {
	engine := gin.New()
	engine.Use(Logger(), gin.Recovery())

	s := &Server{engine: engine, deps: deps, now: time.Now}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	}
}

func (s *Server) routes() {
	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	v1 := s.engine.Group("/api/v1")

	news := v1.Group("/news")
	{
		news.GET("", s.listNews)
		news.GET("/search", s.searchNews)
		news.GET("/stream", s.streamNews)
		news.GET("/:id", s.getNews)
		news.POST("/:id/save", s.saveNews)
		news.DELETE("/:id/save", s.unsaveNews)
		news.POST("/:id/summary", s.summarizeNews)
	}

	v1.GET("/saved", s.listSaved)
	v1.GET("/stats", s.stats)
	v1.POST("/refresh", s.refresh)
	v1.POST("/assistant/ask", s.ask)

	prefs := v1.Group("/preferences")
	{
		prefs.GET("", s.getPreferences)
		prefs.PUT("/days/:day", s.setDay)
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) listNews(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		docs []models.Document
		err  error
	)
	if name := c.Query("category"); name != "" {
		cat, perr := models.ParseCategory(name)
		if perr != nil {
			errorJSON(c, http.StatusBadRequest, perr.Error())
			return
		}
		docs, err = s.deps.Store.ByCategory(ctx, cat)
	} else {
		docs, err = s.deps.Store.Recent(ctx, s.now().Add(-models.RetentionWindow))
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to list news: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(docs))
}

func (s *Server) searchNews(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("q")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultSearchLimit)))
	if err != nil || limit <= 0 {
		errorJSON(c, http.StatusBadRequest, "invalid limit")
		return
	}

	if c.Query("archive") != "true" {
		docs, err := s.deps.Store.Search(ctx, query, limit)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "search failed: "+err.Error())
			return
		}
		c.JSON(http.StatusOK, nonNil(docs))
		return
	}

	if s.deps.Archive == nil {
		errorJSON(c, http.StatusNotImplemented, "archive is not configured")
		return
	}
	opts := elasticsearch.SearchOptions{Query: query, Limit: limit}
	if name := c.Query("category"); name != "" {
		cat, err := models.ParseCategory(name)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		opts.Category = cat
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid since: "+err.Error())
			return
		}
		opts.Since = t
	}
	docs, err := s.deps.Archive.Search(ctx, opts)
	if err != nil {
		errorJSON(c, http.StatusBadGateway, "archive search failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(docs))
}

func (s *Server) getNews(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to get news: "+err.Error())
		return
	}
	if doc == nil && s.deps.Archive != nil {
		doc, err = s.deps.Archive.GetDocument(ctx, id)
		if err != nil {
			errorJSON(c, http.StatusBadGateway, "archive lookup failed: "+err.Error())
			return
		}
	}
	if doc == nil {
		errorJSON(c, http.StatusNotFound, "document not found: "+id)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) saveNews(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to get news: "+err.Error())
		return
	}
	if doc == nil {
		errorJSON(c, http.StatusNotFound, "document not found: "+id)
		return
	}
	if err := s.deps.Store.Save(ctx, *doc); err != nil {
		errorJSON(c, http.StatusInternalServerError, "save failed: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unsaveNews(c *gin.Context) {
	if err := s.deps.Store.Unsave(c.Request.Context(), c.Param("id")); err != nil {
		errorJSON(c, http.StatusInternalServerError, "unsave failed: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) summarizeNews(c *gin.Context) {
	if s.deps.Summarizer == nil {
		errorJSON(c, http.StatusNotImplemented, "summaries are not configured")
		return
	}
	summary, err := s.deps.Summarizer.Summarize(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, llm.ErrNotConfigured):
		errorJSON(c, http.StatusServiceUnavailable, llm.NotConfiguredMessage)
		return
	case err != nil:
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "executive_summary": summary})
}

func (s *Server) listSaved(c *gin.Context) {
	saved, err := s.deps.Store.Saved(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to list saved news: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(saved))
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.deps.Store.Stats(ctx, s.now())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "stats failed: "+err.Error())
		return
	}
	if s.deps.Clock != nil {
		if last, err := s.deps.Clock.LastIngestion(ctx); err == nil {
			stats.LastIngestion = last
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) refresh(c *gin.Context) {
	if s.deps.Refresher == nil {
		errorJSON(c, http.StatusNotImplemented, "refresh is not configured")
		return
	}
	result, err := s.deps.Refresher.Refresh(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}

	failed := []string{}
	for _, src := range result.Sources {
		if src.Err != nil {
			failed = append(failed, src.Name)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"fetched":        result.DocsFetched,
		"stored":         result.DocsStored,
		"new":            len(result.NewDocuments),
		"archived":       result.DocsArchived,
		"failed_sources": failed,
		"duration_ms":    result.Duration.Milliseconds(),
	})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	resp, err := s.deps.Assistant.Ask(c.Request.Context(), req.Question)
	if err != nil {
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getPreferences(c *gin.Context) {
	cfg, err := s.deps.Preferences.Get(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to load preferences: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type dayRequest struct {
	Categories []string `json:"categories"`
	Exclusive  bool     `json:"exclusive"`
}

func (s *Server) setDay(c *gin.Context) {
	day, err := models.ParseWeekday(c.Param("day"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	var req dayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	cats := make([]models.Category, 0, len(req.Categories))
	for _, name := range req.Categories {
		cat, err := models.ParseCategory(name)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		cats = append(cats, cat)
	}

	if err := s.deps.Preferences.SetDayPreference(c.Request.Context(), day, cats, req.Exclusive); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, models.DayPreference{ActiveCategories: cats, ExclusiveMode: req.Exclusive})
}
