// Package mcpserver exposes book search as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/search"
)

const (
	serverName = "moodshelf"

	// DefaultTopK is used when search_books omits top_k.
	DefaultTopK = 10
)

// Searcher runs book queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]*core.SearchResult, error)
}

// Service implements the tool handlers.
type Service struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewService creates the tool handlers around searcher.
func NewService(searcher Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		searcher: searcher,
		logger:   logger.With("component", "mcp"),
	}
}

// NewServer registers the search_books and list_moods tools.
func NewServer(searcher Searcher, version string, logger *slog.Logger) *mcp.Server {
	service := NewService(searcher, logger)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_books",
		Description: "Find books whose descriptions match a natural-language request, optionally restricted to a mood and a minimum rating.",
	}, service.SearchBooks)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_moods",
		Description: "List the mood labels accepted by search_books.",
	}, service.ListMoods)

	return s
}

// SearchBooks handles the search_books tool.
func (s *Service) SearchBooks(ctx context.Context, _ *mcp.CallToolRequest, args SearchBooksArgs) (*mcp.CallToolResult, SearchBooksResult, error) {
	topK := args.TopK
	if topK == 0 {
		topK = DefaultTopK
	}

	results, err := s.searcher.Search(ctx, search.Query{
		Text:      args.Query,
		TopK:      topK,
		Mood:      args.Mood,
		MinRating: args.MinRating,
	})
	if err != nil {
		s.logger.Warn("search_books failed", "err", err)
		return nil, SearchBooksResult{}, err
	}

	out := SearchBooksResult{Books: make([]BookHit, 0, len(results))}
	for _, r := range results {
		b := r.Book
		out.Books = append(out.Books, BookHit{
			ISBN:          b.ISBN,
			Title:         b.Title,
			Authors:       b.Authors,
			Categories:    b.Categories,
			PublishedYear: b.PublishedYear,
			AverageRating: b.AverageRating,
			Description:   b.Description,
			Similarity:    r.Similarity,
			Moods:         r.Moods.Map(),
		})
	}
	return nil, out, nil
}

// ListMoods handles the list_moods tool.
func (s *Service) ListMoods(_ context.Context, _ *mcp.CallToolRequest, _ ListMoodsArgs) (*mcp.CallToolResult, ListMoodsResult, error) {
	return nil, ListMoodsResult{Moods: core.MoodLabels()}, nil
}

// Serve runs the server over stdio until the client disconnects or ctx ends.
func Serve(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
