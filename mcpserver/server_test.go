package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/mood"
	"github.com/poiesic/moodshelf/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	got     search.Query
	results []*core.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]*core.SearchResult, error) {
	f.got = q
	return f.results, f.err
}

func TestSearchBooks(t *testing.T) {
	book := &core.BookRecord{
		ISBN:          "9780000000001",
		Title:         "Northern Hearts",
		Authors:       "Ann Lee",
		Description:   "A love story told through letters",
		AverageRating: 4.2,
	}
	searcher := &fakeSearcher{results: []*core.SearchResult{{
		Book:       book,
		Similarity: 0.8,
		Moods:      mood.Classify(book.Description),
	}}}
	service := NewService(searcher, nil)

	_, out, err := service.SearchBooks(context.Background(), nil, SearchBooksArgs{
		Query:     "romance",
		Mood:      "romantic",
		MinRating: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, search.Query{Text: "romance", TopK: DefaultTopK, Mood: "romantic", MinRating: 4}, searcher.got)

	require.Len(t, out.Books, 1)
	hit := out.Books[0]
	assert.Equal(t, "Northern Hearts", hit.Title)
	assert.Equal(t, float32(0.8), hit.Similarity)
	assert.InDelta(t, 0.3, hit.Moods["romantic"], 1e-9)
	assert.Len(t, hit.Moods, core.NumMoods)
}

func TestSearchBooks_PassesErrors(t *testing.T) {
	searcher := &fakeSearcher{err: core.ErrNotReady}
	service := NewService(searcher, nil)

	_, _, err := service.SearchBooks(context.Background(), nil, SearchBooksArgs{Query: "q", TopK: 3})
	assert.ErrorIs(t, err, core.ErrNotReady)
	assert.Equal(t, 3, searcher.got.TopK)
}

func TestSearchBooks_EmptyResultsAreNotNil(t *testing.T) {
	service := NewService(&fakeSearcher{}, nil)

	_, out, err := service.SearchBooks(context.Background(), nil, SearchBooksArgs{Query: ""})
	require.NoError(t, err)
	assert.NotNil(t, out.Books)
	assert.Empty(t, out.Books)
}

func TestListMoods(t *testing.T) {
	service := NewService(&fakeSearcher{}, nil)

	_, out, err := service.ListMoods(context.Background(), nil, ListMoodsArgs{})
	require.NoError(t, err)
	assert.Equal(t, core.MoodLabels(), out.Moods)
}

func connect(t *testing.T, searcher Searcher) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	server := NewServer(searcher, "test", nil)
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ListMoods(t *testing.T) {
	session := connect(t, &fakeSearcher{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_moods",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out ListMoodsResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, core.MoodLabels(), out.Moods)
}

func TestServer_SearchBooks(t *testing.T) {
	book := &core.BookRecord{Title: "Far Shores", Authors: "E. Sail", Description: "An epic journey"}
	searcher := &fakeSearcher{results: []*core.SearchResult{{Book: book, Similarity: 0.5}}}
	session := connect(t, searcher)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_books",
		Arguments: map[string]any{"query": "sea voyage", "top_k": 2, "mood": "adventurous"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, search.Query{Text: "sea voyage", TopK: 2, Mood: "adventurous"}, searcher.got)

	var out SearchBooksResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	require.Len(t, out.Books, 1)
	assert.Equal(t, "Far Shores", out.Books[0].Title)
}

func TestServer_SearchBooksError(t *testing.T) {
	session := connect(t, &fakeSearcher{err: core.ErrNotReady})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_books",
		Arguments: map[string]any{"query": "anything"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), core.ErrNotReady.Error())
}
