// Package mcp exposes the news collection and the assistant as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CristhianJ12/NewsApp/internal/elasticsearch"
	"github.com/CristhianJ12/NewsApp/internal/pipeline"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Asker answers questions within one conversation.
type Asker interface {
	Ask(ctx context.Context, utterance string) (*models.Response, error)
}

// Summarizer produces and stores executive summaries.
type Summarizer interface {
	Summarize(ctx context.Context, id string) (string, error)
}

// Archive is the long-term document index.
type Archive interface {
	Search(ctx context.Context, opts elasticsearch.SearchOptions) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Refresher runs an ingestion.
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.Result, error)
}

// IngestionClock reports the last successful ingestion.
type IngestionClock interface {
	LastIngestion(ctx context.Context) (time.Time, error)
}

// Deps are the components behind the tools. Archive, Refresher, Clock and
// Summarizer are optional.
type Deps struct {
	Store      store.Store
	Assistant  Asker
	Summarizer Summarizer
	Archive    Archive
	Refresher  Refresher
	Clock      IngestionClock
}

// Server wraps the MCP server with the news tools.
type Server struct {
	mcpServer *server.MCPServer
	deps      Deps
	now       func() time.Time
}

// NewServer creates a new MCP server with the news tools.
func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Assistant == nil {
		return nil, fmt.Errorf("store and assistant are required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		deps:      deps,
		now:       time.Now,
	}

	searchTool := mcp.NewTool("search_news",
		mcp.WithDescription("Search today's news by text. Set archive to search every ingested article instead."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 20)"),
		),
		mcp.WithString("category",
			mcp.Description("Only for archive searches: restrict to one category"),
		),
		mcp.WithBoolean("archive",
			mcp.Description("Search the long-term archive"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	getTool := mcp.NewTool("get_news",
		mcp.WithDescription("Get a news article by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	)
	mcpServer.AddTool(getTool, s.getHandler)

	dailyTool := mcp.NewTool("daily_news",
		mcp.WithDescription("List the news of the last 24 hours, newest first"),
		mcp.WithString("category",
			mcp.Description("Restrict to one category, e.g. Deportes or Economía"),
		),
	)
	mcpServer.AddTool(dailyTool, s.dailyHandler)

	askTool := mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask the news assistant a question in Spanish. The conversation is kept between calls."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The user's question"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	saveTool := mcp.NewTool("save_news",
		mcp.WithDescription("Save a news article so it is kept after the daily sweep, or unsave it"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID"),
		),
		mcp.WithBoolean("saved",
			mcp.Description("false to remove it from the saved collection (default: true)"),
		),
	)
	mcpServer.AddTool(saveTool, s.saveHandler)

	statsTool := mcp.NewTool("news_stats",
		mcp.WithDescription("Counts of stored, recent and saved news per category"),
	)
	mcpServer.AddTool(statsTool, s.statsHandler)

	if deps.Summarizer != nil {
		summaryTool := mcp.NewTool("summarize_news",
			mcp.WithDescription("Generate the executive summary of a news article"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Document ID"),
			),
		)
		mcpServer.AddTool(summaryTool, s.summarizeHandler)
	}

	if deps.Refresher != nil {
		refreshTool := mcp.NewTool("refresh_sources",
			mcp.WithDescription("Fetch every news source now"),
		)
		mcpServer.AddTool(refreshTool, s.refreshHandler)
	}

	return s, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// searchHandler handles the search_news tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	limit := req.GetInt("limit", store.DefaultSearchLimit)

	if !req.GetBool("archive", false) {
		docs, err := s.deps.Store.Search(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return jsonResult(nonNil(docs))
	}

	if s.deps.Archive == nil {
		return mcp.NewToolResultError("archive is not configured"), nil
	}
	opts := elasticsearch.SearchOptions{Query: query, Limit: limit}
	if name := req.GetString("category", ""); name != "" {
		cat, err := models.ParseCategory(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Category = cat
	}
	docs, err := s.deps.Archive.Search(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("archive search failed: %v", err)), nil
	}
	return jsonResult(nonNil(docs))
}

// getHandler handles the get_news tool call. Documents that already left
// the daily collection are looked up in the archive.
func (s *Server) getHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get news failed: %v", err)), nil
	}
	if doc == nil && s.deps.Archive != nil {
		doc, err = s.deps.Archive.GetDocument(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("archive lookup failed: %v", err)), nil
		}
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}
	return jsonResult(doc)
}

func (s *Server) dailyHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		docs []models.Document
		err  error
	)
	if name := req.GetString("category", ""); name != "" {
		cat, perr := models.ParseCategory(name)
		if perr != nil {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		docs, err = s.deps.Store.ByCategory(ctx, cat)
	} else {
		docs, err = s.deps.Store.Recent(ctx, s.now().Add(-models.RetentionWindow))
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	return jsonResult(nonNil(docs))
}

func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	resp, err := s.deps.Assistant.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assistant failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Server) saveHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	if !req.GetBool("saved", true) {
		if err := s.deps.Store.Unsave(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unsave failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("unsaved %s", id)), nil
	}

	doc, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get news failed: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}
	if err := s.deps.Store.Save(ctx, *doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved %s", id)), nil
}

func (s *Server) statsHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.deps.Store.Stats(ctx, s.now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	if s.deps.Clock != nil {
		if last, err := s.deps.Clock.LastIngestion(ctx); err == nil {
			stats.LastIngestion = last
		}
	}
	return jsonResult(stats)
}

func (s *Server) summarizeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	summary, err := s.deps.Summarizer.Summarize(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary failed: %v", err)), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) refreshHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.deps.Refresher.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored %d documents (%d new) from %d sources",
		result.DocsStored, len(result.NewDocuments), len(result.Sources))), nil
}

func nonNil(docs []models.Document) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	return docs
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
