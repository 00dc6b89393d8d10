// Package mcpadapter exposes the article search and ask pipelines as MCP
// tools over stdio, so coding agents can query the article base directly.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/usecase"
)

type SearchService interface {
	Search(ctx context.Context, query domain.Query, mode domain.DedupMode) ([]domain.RetrievedChunk, error)
}

type AskService interface {
	Ask(ctx context.Context, input usecase.AskInput) (*domain.Answer, error)
}

// NewServer registers the search_articles and ask_articles tools.
func NewServer(search SearchService, ask AskService, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}

	srv := server.NewMCPServer(
		"agent-tools-rag",
		version,
		server.WithToolCapabilities(true),
	)
	srv.AddTool(searchArticlesTool(), handleSearchArticles(search, logger))
	srv.AddTool(askArticlesTool(), handleAskArticles(ask, logger))
	return srv
}

// ServeStdio blocks until the client disconnects.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

func searchArticlesTool() mcp.Tool {
	return mcp.NewTool("search_articles",
		mcp.WithDescription("Hybrid semantic+keyword search over the AI agent tools article index"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default 5, max 50)"),
		),
		mcp.WithString("dedup_mode",
			mcp.Description("distinct_hits (default) or unique_titles"),
		),
		mcp.WithString("category",
			mcp.Description("Filter by article category"),
		),
		mcp.WithString("language",
			mcp.Description("Filter by article language"),
		),
		mcp.WithString("source_type",
			mcp.Description("Filter by source type (blog, repo, paper)"),
		),
		mcp.WithNumber("min_stars",
			mcp.Description("Only repositories with at least this many stars"),
		),
	)
}

func askArticlesTool() mcp.Tool {
	return mcp.NewTool("ask_articles",
		mcp.WithDescription("Answer a question about AI agent tooling using retrieved articles as grounding"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("provider",
			mcp.Description("LLM provider: openrouter, hface or anthropic (default from config)"),
		),
		mcp.WithString("model",
			mcp.Description("Model override; must be in the provider's catalog"),
		),
	)
}

func handleSearchArticles(search SearchService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queryText, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(queryText) == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		mode := domain.DedupDistinctHits
		if request.GetString("dedup_mode", "") == string(domain.DedupUniqueTitles) {
			mode = domain.DedupUniqueTitles
		}

		query := domain.Query{
			Text:  queryText,
			Limit: request.GetInt("limit", 5),
			Filter: domain.SearchFilter{
				Category:   request.GetString("category", ""),
				Language:   request.GetString("language", ""),
				SourceType: request.GetString("source_type", ""),
			},
		}
		if stars := request.GetInt("min_stars", 0); stars > 0 {
			query.Filter.MinStars = &stars
		}

		results, err := search.Search(ctx, query, mode)
		if err != nil {
			logger.Error("mcp_search_failed", "error", err)
			return mcp.NewToolResultError(publicToolError(err)), nil
		}

		payload, err := json.MarshalIndent(map[string]any{
			"count":   len(results),
			"results": results,
		}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError("failed to encode results"), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func handleAskArticles(ask AskService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queryText, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(queryText) == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		answer, err := ask.Ask(ctx, usecase.AskInput{
			Query:    domain.Query{Text: queryText},
			Provider: request.GetString("provider", ""),
			Model:    request.GetString("model", ""),
		})
		if err != nil {
			logger.Error("mcp_ask_failed", "error", err)
			return mcp.NewToolResultError(publicToolError(err)), nil
		}

		return mcp.NewToolResultText(formatAnswer(answer)), nil
	}
}

// formatAnswer renders the answer plus its citations as markdown.
func formatAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	b.WriteString("\n\n---\nModel: ")
	b.WriteString(answer.Provider)
	b.WriteString("/")
	b.WriteString(answer.Model)
	if len(answer.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, source := range answer.Sources {
			fmt.Fprintf(&b, "%d. %s", i+1, source.Title)
			if source.URL != "" {
				fmt.Fprintf(&b, " (%s)", source.URL)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// publicToolError mirrors the HTTP surface: validation details go back to
// the caller, infrastructure details do not.
func publicToolError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRejectedInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrConfiguration):
		return "provider is not configured"
	case domain.IsKind(err, domain.ErrRetrievalUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return "retrieval backend is unavailable"
	case domain.IsKind(err, domain.ErrGenerationFailure):
		return "generation provider failed"
	default:
		return "internal error"
	}
}
